package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/gekko3d/meshdust"
	"github.com/gekko3d/meshdust/render"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configDir := flag.String("config", ".", "directory holding meshdust.yaml, .json or .toml")
	watch := flag.Bool("watch", false, "reload the mesh whenever the file changes")
	debug := flag.Bool("debug", false, "enable debug logging")
	headless := flag.Bool("headless", false, "sample and animate without a window")
	frames := flag.Int("frames", 120, "frames to run in headless mode")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [mesh.ply|mesh.obj|mesh.fbx]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	path := flag.Arg(0)

	if err := meshdust.LoadConfig(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := meshdust.ConfigFromViper()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := meshdust.NewDefaultLogger("meshdust", false)
	logger.SetLevel(cfg.LogLevel)
	if *debug {
		logger.SetDebug(true)
	}

	if *headless {
		if err := runHeadless(cfg, path, *frames, logger); err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		return
	}
	if err := runWindowed(cfg, path, *watch, logger); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func engineOptions(cfg meshdust.Config, logger meshdust.Logger) []meshdust.EngineOption {
	return []meshdust.EngineOption{
		meshdust.WithLogger(logger),
		meshdust.WithSamplingMode(cfg.Sampling),
		meshdust.WithFrameDelta(cfg.FrameDelta),
		meshdust.WithParams(cfg.Params),
	}
}

// runHeadless drives the engine from a timer host, which is enough to
// exercise loading, sampling and the effect loop on machines without a GPU.
func runHeadless(cfg meshdust.Config, path string, frames int, logger meshdust.Logger) error {
	if path == "" {
		return errors.New("headless mode needs a mesh file")
	}
	opts := append(engineOptions(cfg, logger), meshdust.WithHost(meshdust.NewTickerHost(meshdust.DefaultFrameInterval)))
	e := meshdust.NewEngine(opts...)
	defer e.Close()

	e.LoadFile(path)
	for e.Status() == meshdust.StatusLoading {
		time.Sleep(meshdust.DefaultFrameInterval)
		e.Pump()
	}
	e.Start()
	time.Sleep(time.Duration(frames) * meshdust.DefaultFrameInterval)
	e.Stop()
	e.Pump()

	if status := e.Status(); status != "" {
		return errors.New(status)
	}
	fx := e.Effects()
	logger.Infof("%s: %d particles, clock %.3f, rotation %.3f", path, e.Current().Count(), fx.EffectClock, fx.RotationAngle)
	return nil
}

type viewer struct {
	engine *meshdust.Engine
	window *render.Window
	logger meshdust.Logger
	title  string
	path   string
	mode   viewMode

	lastTitle string
}

func runWindowed(cfg meshdust.Config, path string, watch bool, logger meshdust.Logger) error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	defer glfw.Terminate()

	win, err := render.OpenWindow(render.WindowOptions{
		Width:  cfg.Width,
		Height: cfg.Height,
		Title:  cfg.Title,
		Renderer: render.RendererOptions{
			VSync:      cfg.VSync,
			Background: cfg.Background,
			Logger:     logger,
		},
	})
	if err != nil {
		return err
	}

	opts := append(engineOptions(cfg, logger),
		meshdust.WithHost(win),
		meshdust.WithPresenter(win.Renderer),
	)
	v := &viewer{
		engine: meshdust.NewEngine(opts...),
		window: win,
		logger: logger,
		title:  cfg.Title,
		path:   path,
	}
	win.OnKey(v.handleKey)
	win.AfterFrames(v.refreshTitle)

	if path != "" {
		v.engine.LoadFile(path)
		if watch {
			fw, err := watchFile(path, v.engine.LoadFile, logger)
			if err != nil {
				logger.Warnf("watch disabled: %v", err)
			} else {
				defer fw.Close()
			}
		}
	}

	v.engine.Start()
	win.Run()

	// stop the frame loop before any GPU object goes away
	v.engine.Close()
	win.Destroy()
	return nil
}

func (v *viewer) handleKey(key glfw.Key, _ glfw.ModifierKey) {
	switch key {
	case glfw.KeyTab:
		if v.mode == modeEdit {
			v.mode = modeShowcase
		} else {
			v.mode = modeEdit
		}
		return
	case glfw.KeyR:
		v.window.Renderer.Controls.Reset()
		return
	case glfw.KeyL:
		if v.path != "" && v.mode == modeEdit {
			v.engine.LoadFile(v.path)
		}
		return
	}

	next, changed := applyKey(v.engine.Params(), v.mode, key)
	if !changed {
		return
	}
	if err := v.engine.SetParams(next); err != nil {
		v.logger.Warnf("apply params: %v", err)
	}
}

func (v *viewer) refreshTitle() {
	title := windowTitle(v.title, v.path, v.engine.Current().Count(), v.engine.Params(), v.mode, v.engine.Status())
	if title != v.lastTitle {
		v.window.SetTitle(title)
		v.lastTitle = title
	}
}
