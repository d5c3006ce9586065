// Package gshadeaux provides helpers for rendering gshade backgrounds to
// files and windows. Applications with specific needs should build their own
// pipeline on top of [glrender] and [gleval].
package gshadeaux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/soypat/gshade"
	"github.com/soypat/gshade/glbuild"
	"github.com/soypat/gshade/gleval"
	"github.com/soypat/gshade/glrender"
)

// RenderPNGFile renders bg at the configured size and saves it as a PNG file with said filename.
// The background's uniforms are used as is; cfg only supplies size and evaluator options.
func RenderPNGFile(ctx context.Context, filename string, bg *gshade.Background, cfg RenderConfig) error {
	img, err := RenderImage(ctx, bg, cfg)
	if err != nil {
		return err
	}
	watch := stopwatch()
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	err = png.Encode(fp, img)
	if err != nil {
		return err
	}
	err = fp.Sync()
	if err != nil {
		return err
	}
	gshade.Logger().Info("wrote png", "file", filename, "elapsed", watch())
	return nil
}

// RenderImage renders bg at the configured size into a new image.
func RenderImage(ctx context.Context, bg *gshade.Background, cfg RenderConfig) (*image.NRGBA, error) {
	if bg == nil {
		return nil, errors.New("nil background")
	}
	renderer, err := glrender.NewImageRenderer(cfg.imageConfig())
	if err != nil {
		return nil, err
	}
	if cfg.UseGPU {
		terminate, err := gleval.Init1x1GLFW()
		if err != nil {
			return nil, err
		}
		defer terminate()
	}
	frag, release, err := newEvaluator(bg, cfg.UseGPU)
	if err != nil {
		return nil, err
	}
	defer release()
	return renderer.Render(ctx, frag)
}

// RenderVideoFile renders an animation of u lasting cfg.Duration seconds
// starting at u.Time and encodes it with ffmpeg to filename.
func RenderVideoFile(ctx context.Context, filename string, u gshade.Uniforms, cfg RenderConfig) (err error) {
	err = u.Validate()
	if err != nil {
		return err
	}
	nframes, err := glrender.FrameCount(float32(cfg.FPS), cfg.Duration)
	if err != nil {
		return err
	} else if nframes == 0 {
		return errors.New("video has no frames")
	}
	renderer, err := glrender.NewImageRenderer(cfg.imageConfig())
	if err != nil {
		return err
	}
	if cfg.UseGPU {
		terminate, err := gleval.Init1x1GLFW()
		if err != nil {
			return err
		}
		defer terminate()
	}
	enc, err := glrender.NewVideoEncoder(filename, glrender.VideoConfig{
		Width:       cfg.Width,
		Height:      cfg.Height,
		FPS:         cfg.FPS,
		Codec:       cfg.Codec,
		PixelFormat: cfg.PixelFormat,
		FFmpegPath:  cfg.FFmpegPath,
	})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, enc.Close())
	}()
	log := gshade.Logger()
	watch := stopwatch()
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	bg := &gshade.Background{}
	for i, fu := range glrender.Frames(u, float32(cfg.FPS), cfg.Duration) {
		bg.Uniforms = fu
		frag, release, err := newEvaluator(bg, cfg.UseGPU)
		if err != nil {
			return err
		}
		err = renderer.RenderInto(ctx, frag, img)
		release()
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		err = enc.WriteFrame(img)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		log.Debug("frame done", "frame", i, "of", nframes, "time", fu.Time)
	}
	log.Info("rendered video", "file", filename, "frames", nframes, "elapsed", watch())
	return nil
}

// newEvaluator returns the CPU background or a compute program with bg's
// uniforms baked in. A GL context must be current when useGPU is set.
func newEvaluator(bg *gshade.Background, useGPU bool) (frag gleval.Fragment, release func(), err error) {
	if !useGPU {
		frag, err = gleval.NewCPUFragment(bg)
		return frag, func() {}, err
	}
	var source bytes.Buffer
	prog := glbuild.NewDefaultProgrammer()
	n, _, err := prog.WriteComputeFragment(&source, bg)
	if err != nil {
		return nil, nil, err
	} else if n != source.Len() {
		return nil, nil, fmt.Errorf("wrote %d bytes but WriteComputeFragment counted %d", source.Len(), n)
	}
	invocX, _, _ := prog.ComputeInvocations()
	gpu, err := gleval.NewComputeGPUFragment(&source, invocX)
	if err != nil {
		return nil, nil, err
	}
	return gpu, gpu.Delete, nil
}

func (cfg RenderConfig) imageConfig() glrender.ImageConfig {
	return glrender.ImageConfig{
		Width:       cfg.Width,
		Height:      cfg.Height,
		Workers:     cfg.Workers,
		Supersample: cfg.Supersample,
	}
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
