package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tododesk/client/internal/apiclient"
	"tododesk/client/internal/config"
	"tododesk/client/internal/logging"
	"tododesk/client/internal/state"
	"tododesk/client/internal/storage"
	"tododesk/client/internal/ui"
)

// Application связывает state machine, API-клиент и хранилище сессии.
type Application struct {
	cfg       *config.Config
	logger    *logging.Logger
	api       *apiclient.Client
	store     *storage.Store
	machine   *state.Machine
	ctx       *state.AppContext
	ui        *ui.Manager
	shutdown  chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	stopOnce  sync.Once
}

// New создаёт Application и настраивает state machine callbacks.
func New(cfg *config.Config, logger *logging.Logger) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	store, err := storage.New(cfg.StateFile)
	if err != nil {
		return nil, fmt.Errorf("init session store: %w", err)
	}
	stateCtx := state.NewAppContext(cfg)
	runCtx, runCancel := context.WithCancel(context.Background())
	app := &Application{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		ctx:       stateCtx,
		shutdown:  make(chan struct{}),
		runCtx:    runCtx,
		runCancel: runCancel,
	}
	client, err := apiclient.New(cfg.APIBaseURL, apiclient.Options{
		Logger:         logger,
		OnUnauthorized: app.onUnauthorized,
	})
	if err != nil {
		runCancel()
		return nil, fmt.Errorf("init api client: %w", err)
	}
	app.api = client
	uiManager := ui.NewManager(ui.Options{
		AppID:    "tododesk.client",
		AppName:  "TodoDesk",
		Logger:   logger,
		Dispatch: app.dispatch,
	})
	app.ui = uiManager
	callbacks := state.Callbacks{
		StartRestore:        app.startRestore,
		StartLogin:          app.startLogin,
		StartSignup:         app.startSignup,
		StartLogout:         app.startLogout,
		StartLoadTodos:      app.startLoadTodos,
		StartCreateTodo:     app.startCreateTodo,
		StartUpdateTodo:     app.startUpdateTodo,
		StartToggleTodo:     app.startToggleTodo,
		StartDeleteTodo:     app.startDeleteTodo,
		ClearSession:        app.clearDurableSession,
		ShowLoginWindow:     uiManager.ShowLoginWindow,
		ShowMainWindow:      uiManager.ShowMainWindow,
		HideMainWindow:      uiManager.HideMainWindow,
		UpdateUI:            uiManager.UpdateUI,
		ShowModalError:      uiManager.ShowModalError,
		ShowTransientNotice: uiManager.ShowTransientNotice,
		CleanupAndExit:      app.cleanupAndExit,
	}
	app.machine = state.NewMachine(stateCtx, logger, callbacks)
	return app, nil
}

// Run запускает state machine и инициирует сценарий старта.
func (a *Application) Run() error {
	if a.machine == nil {
		return fmt.Errorf("machine is not initialized")
	}
	if a.ui != nil {
		a.ui.Start()
		a.ui.UpdateUI(a.ctx)
	}
	a.machine.Start()
	return a.dispatch(state.Event{Type: state.EventUILaunch, TS: time.Now()})
}

// RunUILoop запускает главный цикл Fyne и блокирует вызывающую горутину до выхода.
func (a *Application) RunUILoop() {
	if a.ui == nil {
		return
	}
	a.ui.RunMainLoop()
}

// Stop останавливает state machine и UI.
func (a *Application) Stop() {
	a.stopOnce.Do(func() {
		if a.runCancel != nil {
			a.runCancel()
		}
		if a.ui != nil {
			a.ui.Shutdown()
			if !a.ui.WaitAsync(3*time.Second) && a.logger != nil {
				a.logger.Errorf("ui background tasks did not finish before timeout")
			}
		}
		if a.machine != nil {
			a.machine.Stop()
			if !a.machine.WaitAsync(3*time.Second) && a.logger != nil {
				a.logger.Errorf("state machine background tasks did not finish before timeout")
			}
		}
		close(a.shutdown)
	})
}

// Done возвращает канал, закрывающийся после полной остановки приложения.
func (a *Application) Done() <-chan struct{} {
	return a.shutdown
}

func (a *Application) dispatch(evt state.Event) error {
	if err := a.machine.Dispatch(evt); err != nil {
		a.logger.Errorf("dispatch %s failed: %v", evt.Type, err)
		return err
	}
	return nil
}

// onUnauthorized переводит ответ 401 в явное событие для state machine.
// Навигацией и сбросом занимается сессионный слой, не транспортный.
func (a *Application) onUnauthorized() {
	a.logger.Infof("server rejected credential, scheduling session teardown")
	_ = a.dispatch(state.Event{Type: state.EventSysUnauthorized, TS: time.Now()})
}

func (a *Application) cleanupAndExit(_ *state.AppContext) {
	a.logger.Infof("state machine requested shutdown")
	if a.ui != nil {
		a.ui.Quit()
	}
	a.Stop()
}
