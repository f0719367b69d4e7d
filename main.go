package main

import (
	"context"
	"embed"
	"log"
	"net/url"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
	wruntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/MJE43/geocoin/internal/config"
	"github.com/MJE43/geocoin/internal/desktop"
)

//go:embed all:frontend/dist
var assets embed.FS

const repoURL = "https://github.com/MJE43/geocoin"

var (
	appCtx   context.Context
	appCtxMu sync.RWMutex
)

func buildWindowsOptions() *windows.Options {
	return &windows.Options{
		Theme:                windows.SystemDefault,
		WebviewIsTransparent: false,
		WindowIsTranslucent:  false,
		DisablePinchZoom:     true,
		IsZoomControlEnabled: false,
		ZoomFactor:           1.0,
		WindowClassName:      "GeocoinWindow",
	}
}

func buildMacOptions() *mac.Options {
	return &mac.Options{
		TitleBar: mac.TitleBarDefault(),
		About: &mac.AboutInfo{
			Title:   "Geocoin",
			Message: "Walk the grid, find caches, carry coins between them.\n\nAll progress is stored locally.",
		},
	}
}

func buildLinuxOptions() *linux.Options {
	return &linux.Options{
		WebviewGpuPolicy: linux.WebviewGpuPolicyOnDemand,
		ProgramName:      "geocoin",
	}
}

func main() {
	log.Printf("Starting Geocoin (Go %s)...", runtime.Version())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	gameMod, err := desktop.NewGameModule(cfg)
	if err != nil {
		log.Fatalf("game module init failed: %v", err)
	}

	startup := func(ctx context.Context) {
		setAppContext(ctx)
		if err := gameMod.Startup(ctx); err != nil {
			log.Printf("game failed to start: %v", err)
			wruntime.MessageDialog(ctx, wruntime.MessageDialogOptions{
				Type:    wruntime.ErrorDialog,
				Title:   "Geocoin could not start",
				Message: err.Error(),
			})
			wruntime.Quit(ctx)
			return
		}
		info := gameMod.APIInfo()
		log.Printf("Local API ready at %s (token enabled: %v)", info.URL, info.TokenEnabled)
	}

	beforeClose := func(ctx context.Context) (prevent bool) {
		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
		defer cancel()
		if err := gameMod.Shutdown(shutdownCtx); err != nil {
			log.Printf("game module shutdown error: %v", err)
		}
		setAppContext(nil)
		log.Println("Application is closing")
		return false
	}

	if err := wails.Run(&options.App{
		Title:            "Geocoin",
		Width:            1024,
		Height:           768,
		MinWidth:         480,
		MinHeight:        600,
		BackgroundColour: &options.RGBA{R: 242, G: 239, B: 233, A: 255},

		AssetServer: &assetserver.Options{
			Assets: assets,
		},

		OnStartup:     startup,
		OnBeforeClose: beforeClose,
		OnShutdown: func(ctx context.Context) {
			log.Println("Application shutdown complete")
		},

		Menu: buildAppMenu(cfg.DataDir),
		Bind: []interface{}{gameMod},

		LogLevel:           logger.INFO,
		LogLevelProduction: logger.ERROR,

		EnableDefaultContextMenu: false,
		ErrorFormatter: func(err error) any {
			if err == nil {
				return nil
			}
			return err.Error()
		},

		// one process per save file
		SingleInstanceLock: &options.SingleInstanceLock{
			UniqueId: "3f1c2a9e-geocoin-desktop",
			OnSecondInstanceLaunch: func(data options.SecondInstanceData) {
				log.Printf("Second instance launch prevented. Args: %v", data.Args)
			},
		},

		Windows: buildWindowsOptions(),
		Mac:     buildMacOptions(),
		Linux:   buildLinuxOptions(),
	}); err != nil {
		log.Fatalf("Error running Wails app: %v", err)
	}

	log.Println("Application exited normally")
}

func buildAppMenu(dataDir string) *menu.Menu {
	rootMenu := menu.NewMenu()

	if runtime.GOOS == "darwin" {
		if appMenu := menu.AppMenu(); appMenu != nil {
			rootMenu.Append(appMenu)
		}
	}

	fileMenu := menu.NewMenu()
	fileMenu.AddText("Open Data Directory", keys.CmdOrCtrl("o"), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			openPathInExplorer(ctx, dataDir)
		})
	})
	fileMenu.AddSeparator()
	fileMenu.AddText("Quit", keys.CmdOrCtrl("q"), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.Quit(ctx)
		})
	})
	rootMenu.Append(menu.SubMenu("File", fileMenu))

	viewMenu := menu.NewMenu()
	viewMenu.AddText("Reload Map", keys.CmdOrCtrl("r"), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.WindowReloadApp(ctx)
		})
	})
	rootMenu.Append(menu.SubMenu("View", viewMenu))

	helpMenu := menu.NewMenu()
	helpMenu.AddText("Project Repository", nil, func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.BrowserOpenURL(ctx, repoURL)
		})
	})
	rootMenu.Append(menu.SubMenu("Help", helpMenu))

	return rootMenu
}

func openPathInExplorer(ctx context.Context, path string) {
	if path == "" {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		log.Printf("resolve path %s failed: %v", path, err)
		abs = path
	}
	wruntime.BrowserOpenURL(ctx, fileURI(abs))
}

func fileURI(path string) string {
	clean := filepath.ToSlash(path)
	if runtime.GOOS == "windows" && len(clean) > 0 && clean[0] != '/' {
		clean = "/" + clean
	}
	u := url.URL{Scheme: "file", Path: clean}
	return u.String()
}

func setAppContext(ctx context.Context) {
	appCtxMu.Lock()
	defer appCtxMu.Unlock()
	appCtx = ctx
}

func withAppContext(action func(context.Context)) {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()
	if ctx == nil {
		log.Println("application context not initialised; ignoring menu action")
		return
	}
	action(ctx)
}
