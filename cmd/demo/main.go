// Command demo wires the render-graph executor into a real window and GPU
// device: it opens a GLFW window via engine/window (the teacher's own
// windowing package), builds a wgpu device via driver/wgpu, declares a
// two-node render graph (a culling node that fans CPU work out to a
// worker.DynamicWorkerPool, and a color pass that presents to the window),
// and drives Executor.Render from the window's per-iteration update
// callback — the same engine/window.ProcessMessages loop the teacher's own
// engine package drives its renderer from.
package main

import (
	"log"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/oxy-arcana/rendergraph/config"
	"github.com/oxy-arcana/rendergraph/driver"
	wgpudriver "github.com/oxy-arcana/rendergraph/driver/wgpu"
	"github.com/oxy-arcana/rendergraph/engine/profiler"
	"github.com/oxy-arcana/rendergraph/engine/window"
	"github.com/oxy-arcana/rendergraph/exec"
	"github.com/oxy-arcana/rendergraph/graph"
)

const demoWindow graph.Window = 1

func main() {
	cfg, err := config.Load("rendergraph.yaml")
	if err != nil {
		log.Fatalf("demo: loading config: %v", err)
	}

	win := window.NewWindow(
		window.WithTitle("rendergraph demo"),
		window.WithWidth(1280),
		window.WithHeight(720),
	)

	dev, err := wgpudriver.New(nil, false)
	if err != nil {
		log.Fatalf("demo: creating device: %v", err)
	}
	defer dev.Destroy()

	dev.RegisterWindowSurface(uintptr(demoWindow), win.SurfaceDescriptor())

	store := graph.NewStore()
	pool := worker.NewDynamicWorkerPool(3, 256, time.Second)

	cullNodeID := store.ReserveNode()
	cullOut := store.NewBufferTarget("cull-results", cullNodeID, driver.BufferDescriptor{
		Size:  4096,
		Usage: driver.UsageStorage,
		Label: "cull-results",
	}, driver.StageCompute)
	if err := store.AddNode(cullNodeID, "cull", []graph.TargetID{cullOut}, nil, cullNode(pool)); err != nil {
		log.Fatalf("demo: adding cull node: %v", err)
	}

	colorNodeID := store.ReserveNode()
	colorOut := store.NewImageTarget("color", colorNodeID, driver.ImageDescriptor{
		Format: driver.FormatBGRA8Unorm,
		Extent: driver.Extent{Width: 1280, Height: 720, Depth: 1},
		Usage:  driver.UsageColorAttachment,
		Label:  "color",
	}, driver.StageColorOutput)
	if err := store.AddNode(colorNodeID, "color-pass", []graph.TargetID{colorOut}, []graph.TargetID{cullOut}, colorPassNode(cullOut, colorOut)); err != nil {
		log.Fatalf("demo: adding color-pass node: %v", err)
	}
	if err := store.RecordRead(cullOut, driver.StageCompute); err != nil {
		log.Fatalf("demo: recording cull read: %v", err)
	}
	if err := store.BindPresentation(demoWindow, colorOut); err != nil {
		log.Fatalf("demo: binding presentation: %v", err)
	}

	executor := exec.NewExecutor(dev, cfg.EpochBound, cfg.CommandPoolBound)
	executor.RegisterWindow(demoWindow, uintptr(demoWindow), win.Width(), win.Height(), driver.PresentModeFIFO)

	win.SetResizeCallback(func(width, height int) {
		executor.ResizeWindow(demoWindow, width, height)
	})

	prof := profiler.NewProfiler()
	queue := dev.Queue()
	windows := []graph.Window{demoWindow}

	win.SetUpdateCallback(func() {
		if err := executor.Render(store, queue, windows, nil); err != nil {
			log.Printf("demo: render: %v", err)
		}
		prof.Tick(executor.InFlight(), executor.LastScheduledNodes())
	})

	win.ProcessMessages()
}

// cullNode returns a callback that fans its CPU-side culling work out to
// pool, blocking until every submitted task completes before returning —
// demonstrating §5's "a node may use parallelism internally but must not
// call back into the executor" contract. It performs no GPU work of its
// own, so it never opens a command encoder.
func cullNode(pool worker.DynamicWorkerPool) graph.Callback {
	const shards = 8
	return func(ctx graph.RenderContext) error {
		done := make(chan struct{}, shards)
		for i := 0; i < shards; i++ {
			shard := i
			pool.SubmitTask(worker.Task{
				ID: shard,
				Do: func() (any, error) {
					defer func() { done <- struct{}{} }()
					// Placeholder CPU-side cull work for one shard of the
					// scene; a real node would write surviving instance
					// indices into a staging buffer here.
					return nil, nil
				},
			})
		}
		for i := 0; i < shards; i++ {
			<-done
		}
		return nil
	}
}

// colorPassNode returns a callback that reads cullResults, clears colorOut,
// and presents it, demonstrating the minimal single-node-writes-and-presents
// shape (§8 scenario S1) extended with one upstream read (S2).
func colorPassNode(cullResults, colorOut graph.TargetID) graph.Callback {
	return func(ctx graph.RenderContext) error {
		enc, err := ctx.NewCommandEncoder("color-pass")
		if err != nil {
			return err
		}

		if _, err := ctx.ReadBuffer(cullResults, enc); err != nil {
			return err
		}

		img, err := ctx.WriteImage(colorOut, enc)
		if err != nil {
			return err
		}

		clear := [4]float64{0.02, 0.02, 0.05, 1.0}
		enc.RenderPass(driver.RenderPassDescriptor{
			ColorTargets: []driver.Image{img},
			ClearColor:   &clear,
		}, func() {})

		cb, err := enc.Finish()
		if err != nil {
			return err
		}
		ctx.Commit(cb)
		return nil
	}
}
