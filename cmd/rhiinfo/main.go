//go:build !nogpu

// Command rhiinfo prints the device and capabilities a backend reports.
//
//	rhiinfo -backend vulkan
//	rhiinfo -backend gl -json
//
// Without -backend it reads RHI_BACKEND from the environment or a .env
// file and falls back to Vulkan.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/factory"
	"github.com/gogpu/rhi/hal/glapi"
	"github.com/gogpu/rhi/hal/glapi/gogl"
	"github.com/gogpu/rhi/hal/vkapi/vkgo"
	"github.com/gogpu/rhi/internal/window"
)

func init() {
	runtime.LockOSThread()
}

// report is the printed form of rhi.Caps.
type report struct {
	Backend                string   `json:"backend"`
	Device                 string   `json:"device"`
	MaxImageDimension      int      `json:"maxImageDimension"`
	MaxSamples             int      `json:"maxSamples"`
	Bindless               bool     `json:"bindless"`
	MaxImageArray          int      `json:"maxImageArray"`
	UniformOffsetAlignment int      `json:"uniformOffsetAlignment"`
	FramesInFlight         int      `json:"framesInFlight"`
	DynamicStates          []string `json:"dynamicStates"`
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}
	var (
		name   = flag.String("backend", os.Getenv("RHI_BACKEND"), "backend: vulkan or gl")
		asJSON = flag.Bool("json", false, "print JSON")
		debug  = flag.Bool("debug", false, "enable validation")
	)
	flag.Parse()
	if *name == "" {
		*name = "vulkan"
	}
	backend, err := rhi.ParseBackend(*name)
	if err != nil {
		log.Fatal(err)
	}

	rep, err := probe(backend, *debug)
	if err != nil {
		log.Fatalf("Failed to probe %s: %v", backend, err)
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.Fatal(err)
		}
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Backend\t%s\n", rep.Backend)
	fmt.Fprintf(tw, "Device\t%s\n", rep.Device)
	fmt.Fprintf(tw, "Max image dimension\t%d\n", rep.MaxImageDimension)
	fmt.Fprintf(tw, "Max samples\t%d\n", rep.MaxSamples)
	fmt.Fprintf(tw, "Bindless\t%v\n", rep.Bindless)
	fmt.Fprintf(tw, "Max image array\t%d\n", rep.MaxImageArray)
	fmt.Fprintf(tw, "Uniform offset alignment\t%d\n", rep.UniformOffsetAlignment)
	fmt.Fprintf(tw, "Frames in flight\t%d\n", rep.FramesInFlight)
	fmt.Fprintf(tw, "Dynamic states\t%v\n", rep.DynamicStates)
	tw.Flush()
}

// probe opens a hidden window and a renderer on it, and collects its
// capabilities.
func probe(backend rhi.BackendKind, debug bool) (report, error) {
	if err := window.Init(); err != nil {
		return report{}, err
	}
	defer window.Terminate()
	win, err := window.Open(backend, "rhiinfo", 64, 64, window.Hidden())
	if err != nil {
		return report{}, err
	}
	defer win.Destroy()

	f, err := factory.New(factory.Config{
		Backend: backend,
		OpenGL: func(rhi.GLSurface) (glapi.Functions, error) {
			ctx, err := gogl.New()
			if err != nil {
				return nil, err
			}
			return ctx, nil
		},
		Vulkan: vkgo.Loader(window.ProcAddr()),
		Debug:  debug,
	})
	if err != nil {
		return report{}, err
	}
	defer f.Shutdown()
	r, err := f.NewRenderer(rhi.WithSurface(win.Surface()), rhi.WithSize(64, 64))
	if err != nil {
		return report{}, err
	}
	defer r.Destroy()

	caps := r.Caps()
	rep := report{
		Backend:                r.Backend().String(),
		Device:                 caps.DeviceName,
		MaxImageDimension:      caps.MaxImageDimension,
		MaxSamples:             caps.MaxSamples,
		Bindless:               caps.Bindless,
		MaxImageArray:          caps.MaxImageArray,
		UniformOffsetAlignment: caps.UniformOffsetAlignment,
		FramesInFlight:         caps.FramesInFlight,
	}
	for _, k := range caps.DynamicStates.Kinds() {
		rep.DynamicStates = append(rep.DynamicStates, k.String())
	}
	return rep, nil
}
