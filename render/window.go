package render

import (
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// KeyHandler receives key presses and repeats.
type KeyHandler func(key glfw.Key, mods glfw.ModifierKey)

// Window wraps a glfw window and serves as the engine's FrameHost: frame
// requests are queued and run on the window thread once per loop
// iteration, so with a FIFO surface they follow the display refresh.
type Window struct {
	GLFW     *glfw.Window
	Renderer *Renderer

	mu          sync.Mutex
	frames      []*frameRequest
	onKey       KeyHandler
	afterFrames func()

	dragging     bool
	lastX, lastY float64
}

type frameRequest struct {
	fn        func()
	cancelled bool
}

// WindowOptions configures OpenWindow.
type WindowOptions struct {
	Width, Height int
	Title         string
	Renderer      RendererOptions
}

// OpenWindow creates the glfw window and its renderer. glfw.Init must have
// been called on the locked main thread.
func OpenWindow(opts WindowOptions) (*Window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	gw, err := glfw.CreateWindow(opts.Width, opts.Height, opts.Title, nil, nil)
	if err != nil {
		return nil, err
	}
	r, err := NewRenderer(gw, opts.Renderer)
	if err != nil {
		gw.Destroy()
		return nil, err
	}

	w := &Window{GLFW: gw, Renderer: r}
	gw.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		r.Resize(width, height)
	})
	gw.SetKeyCallback(w.handleKey)
	gw.SetMouseButtonCallback(w.handleMouseButton)
	gw.SetCursorPosCallback(w.handleCursor)
	gw.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		r.Controls.Zoom(float32(yoff))
	})
	return w, nil
}

// OnKey installs the key handler.
func (w *Window) OnKey(h KeyHandler) {
	w.mu.Lock()
	w.onKey = h
	w.mu.Unlock()
}

// AfterFrames installs fn, called on the window thread after each batch of
// frame callbacks, outside any engine lock.
func (w *Window) AfterFrames(fn func()) {
	w.mu.Lock()
	w.afterFrames = fn
	w.mu.Unlock()
}

// RequestFrame queues fn for the next loop iteration.
func (w *Window) RequestFrame(fn func()) func() {
	req := &frameRequest{fn: fn}
	w.mu.Lock()
	w.frames = append(w.frames, req)
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		req.cancelled = true
		w.mu.Unlock()
	}
}

// Run pumps events and frame callbacks until the window is closed. With no
// frame pending it waits for input instead of spinning.
func (w *Window) Run() {
	for !w.GLFW.ShouldClose() {
		ran := w.runFrames()

		w.mu.Lock()
		after := w.afterFrames
		w.mu.Unlock()
		if after != nil {
			after()
		}

		if ran == 0 {
			glfw.WaitEventsTimeout(0.05)
			continue
		}
		glfw.PollEvents()
	}
}

func (w *Window) runFrames() int {
	w.mu.Lock()
	frames := w.frames
	w.frames = nil
	w.mu.Unlock()

	ran := 0
	for _, f := range frames {
		w.mu.Lock()
		cancelled := f.cancelled
		w.mu.Unlock()
		if cancelled {
			continue
		}
		f.fn()
		ran++
	}
	return ran
}

func (w *Window) SetTitle(title string) {
	w.GLFW.SetTitle(title)
}

func (w *Window) Close() {
	w.GLFW.SetShouldClose(true)
}

// Destroy releases the renderer and the window. Stop the engine first.
func (w *Window) Destroy() {
	w.Renderer.Release()
	w.GLFW.Destroy()
}

func (w *Window) handleKey(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press && action != glfw.Repeat {
		return
	}
	if key == glfw.KeyEscape {
		w.GLFW.SetShouldClose(true)
		return
	}
	w.mu.Lock()
	h := w.onKey
	w.mu.Unlock()
	if h != nil {
		h(key, mods)
	}
}

func (w *Window) handleMouseButton(gw *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
	if button != glfw.MouseButtonLeft {
		return
	}
	w.dragging = action == glfw.Press
	if w.dragging {
		w.lastX, w.lastY = gw.GetCursorPos()
	}
}

func (w *Window) handleCursor(_ *glfw.Window, x, y float64) {
	if !w.dragging {
		return
	}
	dx, dy := x-w.lastX, y-w.lastY
	w.lastX, w.lastY = x, y
	_, h := w.GLFW.GetSize()
	w.Renderer.Controls.Rotate(float32(dx), float32(dy), h)
}
