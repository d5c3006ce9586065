package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/soypat/gshade"
	"github.com/soypat/gshade/glbuild"
	"github.com/soypat/gshade/gshadeaux"
	"gopkg.in/yaml.v3"
)

const usage = `gshade renders animated noise-distorted gradient backgrounds.

Usage:
	gshade <command> [flags]

Commands:
	png      render a still frame to a PNG file
	video    render an animation with ffmpeg
	glsl     write the vertex and fragment programs
	sheet    render a swatch sheet of all built-in presets
	css      print the static CSS fallback of a preset
	presets  list built-in presets
	preview  open a live preview window

Run "gshade <command> -h" for the flags of a command.
`

func init() {
	// GLFW requires the main thread.
	runtime.LockOSThread()
}

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "png":
		err = runPNG(ctx, args)
	case "video":
		err = runVideo(ctx, args)
	case "glsl":
		err = runGLSL(ctx, args)
	case "sheet":
		err = runSheet(ctx, args)
	case "css":
		err = runCSS(args)
	case "presets":
		err = runPresets(args)
	case "preview":
		err = runPreview(ctx, args)
	case "help", "-h", "-help", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// common holds the flags shared by all rendering commands.
type common struct {
	fs          *flag.FlagSet
	config      string
	preset      string
	width       int
	height      int
	time        float64
	verbose     bool
	gpu         bool
	workers     int
	supersample int
}

func newCommon(name string) *common {
	c := &common{fs: flag.NewFlagSet(name, flag.ExitOnError)}
	def := gshadeaux.DefaultRenderConfig()
	c.fs.StringVar(&c.config, "config", "", "YAML render configuration file")
	c.fs.StringVar(&c.preset, "preset", def.Preset, "preset name, see \"gshade presets\"")
	c.fs.IntVar(&c.width, "width", def.Width, "output width in pixels")
	c.fs.IntVar(&c.height, "height", def.Height, "output height in pixels")
	c.fs.Float64Var(&c.time, "time", float64(def.Time), "animation time in seconds")
	c.fs.BoolVar(&c.verbose, "v", false, "verbose logging")
	c.fs.BoolVar(&c.gpu, "gpu", false, "evaluate with a GPU compute shader")
	c.fs.IntVar(&c.workers, "workers", 0, "CPU render goroutines, 0 uses all CPUs")
	c.fs.IntVar(&c.supersample, "supersample", 0, "supersampling factor")
	return c
}

// parse parses args and returns the render configuration: defaults, then
// the configuration file, then flags set explicitly.
func (c *common) parse(args []string) (gshadeaux.RenderConfig, error) {
	c.fs.Parse(args)
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	gshade.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := gshadeaux.DefaultRenderConfig()
	if c.config != "" {
		var err error
		cfg, err = gshadeaux.LoadConfig(c.config)
		if err != nil {
			return cfg, err
		}
	}
	c.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "preset":
			cfg.Preset = c.preset
		case "width":
			cfg.Width = c.width
		case "height":
			cfg.Height = c.height
		case "time":
			cfg.Time = float32(c.time)
		case "gpu":
			cfg.UseGPU = c.gpu
		case "workers":
			cfg.Workers = c.workers
		case "supersample":
			cfg.Supersample = c.supersample
		}
	})
	return cfg, cfg.Validate()
}

func (c *common) isSet(name string) (set bool) {
	c.fs.Visit(func(f *flag.Flag) {
		set = set || f.Name == name
	})
	return set
}

func newBackground(cfg gshadeaux.RenderConfig) (*gshade.Background, error) {
	u, err := cfg.Uniforms()
	if err != nil {
		return nil, err
	}
	return gshade.NewBackground(u)
}

func runPNG(ctx context.Context, args []string) error {
	c := newCommon("png")
	output := c.fs.String("o", "gshade.png", "output PNG file")
	cfg, err := c.parse(args)
	if err != nil {
		return err
	}
	bg, err := newBackground(cfg)
	if err != nil {
		return err
	}
	return gshadeaux.RenderPNGFile(ctx, *output, bg, cfg)
}

func runVideo(ctx context.Context, args []string) error {
	c := newCommon("video")
	def := gshadeaux.DefaultRenderConfig()
	output := c.fs.String("o", "gshade.mp4", "output video file")
	fps := c.fs.Int("fps", def.FPS, "frames per second")
	duration := c.fs.Float64("duration", float64(def.Duration), "duration in seconds")
	ffmpegPath := c.fs.String("ffmpeg", "", "path to ffmpeg executable")
	codec := c.fs.String("codec", "", "ffmpeg video codec, defaults to libx264")
	cfg, err := c.parse(args)
	if err != nil {
		return err
	}
	if c.isSet("fps") {
		cfg.FPS = *fps
	}
	if c.isSet("duration") {
		cfg.Duration = float32(*duration)
	}
	if c.isSet("ffmpeg") {
		cfg.FFmpegPath = *ffmpegPath
	}
	if c.isSet("codec") {
		cfg.Codec = *codec
	}
	err = cfg.Validate()
	if err != nil {
		return err
	}
	u, err := cfg.Uniforms()
	if err != nil {
		return err
	}
	return gshadeaux.RenderVideoFile(ctx, *output, u, cfg)
}

func runGLSL(ctx context.Context, args []string) error {
	c := newCommon("glsl")
	dialect := c.fs.String("dialect", glbuild.DialectThreeJS.String(), "output dialect: threejs, webgl2, gl330 or compute")
	target := c.fs.String("translate", "", "translate the webgl2 programs to glsl330, glsl410 or essl")
	output := c.fs.String("o", "", "output file prefix, writes <o>.vert and <o>.frag. Empty writes to stdout")
	cfg, err := c.parse(args)
	if err != nil {
		return err
	}
	bg, err := newBackground(cfg)
	if err != nil {
		return err
	}
	programmer := glbuild.NewDefaultProgrammer()
	var vertex, fragment bytes.Buffer
	if *dialect == "compute" {
		if *target != "" {
			return errors.New("compute programs can not be translated")
		}
		_, _, err = programmer.WriteComputeFragment(&fragment, bg)
		if err != nil {
			return err
		}
		return writeOutput(*output, ".comp", fragment.Bytes())
	}
	d, err := glbuild.ParseDialect(*dialect)
	if err != nil {
		return err
	}
	if *target != "" {
		d = glbuild.DialectWebGL2
	}
	_, err = programmer.WriteProgram(&vertex, &fragment, d, bg)
	if err != nil {
		return err
	}
	vsrc, fsrc := vertex.String(), fragment.String()
	if *target != "" {
		tg, err := gshadeaux.ParseTarget(*target)
		if err != nil {
			return err
		}
		vts, err := gshadeaux.Translate(ctx, vsrc, "vertex", tg)
		if err != nil {
			return err
		}
		fts, err := gshadeaux.Translate(ctx, fsrc, "fragment", tg)
		if err != nil {
			return err
		}
		vsrc, fsrc = vts.Code, fts.Code
	}
	err = writeOutput(*output, ".vert", []byte(vsrc))
	if err != nil {
		return err
	}
	return writeOutput(*output, ".frag", []byte(fsrc))
}

func writeOutput(prefix, ext string, data []byte) error {
	if prefix == "" {
		fmt.Printf("// %s\n", strings.TrimPrefix(ext, "."))
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(prefix+ext, data, 0o644)
}

func runSheet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sheet", flag.ExitOnError)
	output := fs.String("o", "presets.png", "output PNG file")
	cellW := fs.Int("cellw", 256, "tile width in pixels")
	cellH := fs.Int("cellh", 144, "tile height in pixels")
	fs.Parse(args)
	fp, err := os.Create(*output)
	if err != nil {
		return err
	}
	err = gshadeaux.WriteSwatchSheet(ctx, fp, gshadeaux.BuiltinPresets(), *cellW, *cellH)
	return errors.Join(err, fp.Close())
}

func runCSS(args []string) error {
	c := newCommon("css")
	cfg, err := c.parse(args)
	if err != nil {
		return err
	}
	p, err := cfg.ResolvePreset()
	if err != nil {
		return err
	}
	fmt.Println(gshadeaux.FallbackCSS(p))
	return nil
}

func runPresets(args []string) error {
	fs := flag.NewFlagSet("presets", flag.ExitOnError)
	asYAML := fs.Bool("yaml", false, "print full preset definitions as YAML")
	fs.Parse(args)
	if !*asYAML {
		for _, name := range gshade.PresetNames() {
			fmt.Println(name)
		}
		return nil
	}
	return writePresetsYAML(os.Stdout)
}

func writePresetsYAML(w io.Writer) error {
	all := make(map[string]gshade.Preset)
	for _, p := range gshadeaux.BuiltinPresets() {
		all[strings.ToLower(p.Name)] = p
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	err := enc.Encode(all)
	if err != nil {
		return err
	}
	return enc.Close()
}

func runPreview(ctx context.Context, args []string) error {
	c := newCommon("preview")
	translate := c.fs.Bool("translate", false, "compile the translated WebGL2 program")
	cfg, err := c.parse(args)
	if err != nil {
		return err
	}
	bg, err := newBackground(cfg)
	if err != nil {
		return err
	}
	return gshadeaux.Preview(bg, gshadeaux.PreviewConfig{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Title:     "gshade " + cfg.Preset,
		Translate: *translate,
		Context:   ctx,
	})
}
