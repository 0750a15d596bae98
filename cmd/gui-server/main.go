package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/iluksbr/udpftp/internal/config"
	"github.com/iluksbr/udpftp/internal/logger"
	"github.com/iluksbr/udpftp/internal/logging"
	"github.com/iluksbr/udpftp/internal/session"
	"github.com/iluksbr/udpftp/internal/ui"
)

// Interface gráfica do servidor com controles para iniciar/parar o listener
// e acompanhar métricas de sessões atendidas.
func main() {
	// Força driver de renderização por software no Windows se não estiver definido
	if runtime.GOOS == "windows" && strings.TrimSpace(os.Getenv("FYNE_DRIVER")) == "" {
		_ = os.Setenv("FYNE_DRIVER", "software")
	}

	serverSettings, err := config.LoadServerSettings()
	if err != nil {
		serverSettings = config.DefaultServerSettings()
	}

	srv := session.NewManagedServer()
	srv.SetBaseDir(serverSettings.BaseDir)

	a := app.New()
	a.Settings().SetTheme(ui.NewCustomTheme())
	w := a.NewWindow("udpftp Server")
	hostEntry := widget.NewEntry()
	hostEntry.SetText(serverSettings.Host)
	portEntry := widget.NewEntry()
	portEntry.SetText(serverSettings.Port)
	baseDirEntry := widget.NewEntry()
	baseDirEntry.SetText(serverSettings.BaseDir)
	errorRateEntry := widget.NewEntry()
	errorRateEntry.SetText("0.00")

	status := ui.NewStatusBar()
	status.SetStatus("Stopped")
	bytesLab := widget.NewLabel("Bytes sent: 0")
	segsLab := widget.NewLabel("Segments sent: 0")
	retrLab := widget.NewLabel("Retransmissions: 0")
	clientsLab := widget.NewLabel("Active sessions: 0")
	logView := logging.NewLogView()
	runUI := func(fn func()) { fyne.Do(fn) }

	level := logger.INFO
	log := logger.NewLogger(level, logViewWriter{logView, runUI}, "server")

	pickDirBtn := widget.NewButton("Choose folder...", func() {
		d := dialog.NewFolderOpen(func(u fyne.ListableURI, err error) {
			if err != nil || u == nil {
				return
			}
			dir := u.Path()
			baseDirEntry.SetText(dir)
			srv.SetBaseDir(strings.TrimSpace(dir))
		}, w)
		d.Show()
	})

	startBtn := widget.NewButton("Start", func() {
		host := strings.TrimSpace(hostEntry.Text)
		p, _ := strconv.Atoi(strings.TrimSpace(portEntry.Text))
		rate, _ := strconv.ParseFloat(strings.TrimSpace(errorRateEntry.Text), 64)
		srv.SetBaseDir(strings.TrimSpace(baseDirEntry.Text))
		if err := srv.Start(host, p, rate, log); err != nil {
			status.SetStatus("Error")
			status.SetInfo(err.Error())
			return
		}
		status.SetStatus("Running")
		status.SetInfo(fmt.Sprintf("%s (base=%s)", srv.LocalAddr(), strings.TrimSpace(baseDirEntry.Text)))
	})
	stopBtn := widget.NewButton("Stop", func() {
		srv.Stop()
		status.SetStatus("Stopped")
		status.SetInfo("")
	})

	// Atualizador periódico de métricas (executa updates no thread de UI)
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			snap := srv.Snapshot()
			runUI(func() {
				bytesLab.SetText(fmt.Sprintf("Bytes sent: %d", snap.TotalBytesSent))
				segsLab.SetText(fmt.Sprintf("Segments sent: %d", snap.TotalSegmentsSent))
				retrLab.SetText(fmt.Sprintf("Retransmissions: %d", snap.TotalRetransmissions))
				clientsLab.SetText(fmt.Sprintf("Active sessions: %d", snap.ActiveConnections))
			})
		}
	}()

	form := widget.NewForm(
		&widget.FormItem{Text: "Host", Widget: hostEntry},
		&widget.FormItem{Text: "Port", Widget: portEntry},
		&widget.FormItem{Text: "Error rate", Widget: errorRateEntry},
		&widget.FormItem{Text: "Base directory", Widget: container.NewBorder(nil, nil, nil, pickDirBtn, baseDirEntry)},
	)
	buttons := container.NewHBox(startBtn, stopBtn)
	metricsBox := container.NewGridWithColumns(2,
		container.NewVBox(bytesLab, segsLab),
		container.NewVBox(retrLab, clientsLab),
	)
	statsBox := container.NewVBox(status, metricsBox, widget.NewLabel("Logs:"))
	top := container.NewVBox(form, buttons, statsBox)
	w.SetContent(container.NewBorder(top, nil, nil, nil, logView.CanvasObject()))
	w.Resize(fyne.NewSize(float32(serverSettings.WindowWidth), float32(serverSettings.WindowHeight)))

	w.SetCloseIntercept(func() {
		config.UpdateServerSettingsFromUI(
			serverSettings,
			hostEntry.Text,
			portEntry.Text,
			baseDirEntry.Text,
		)

		size := w.Content().Size()
		serverSettings.WindowWidth = int(size.Width)
		serverSettings.WindowHeight = int(size.Height)

		if err := config.SaveServerSettings(serverSettings); err != nil {
			fmt.Printf("failed to save settings: %v\n", err)
		}

		srv.Stop()
		w.Close()
	})

	w.ShowAndRun()
}

// logViewWriter adapts logging.LogView to the io.Writer logger.NewLogger
// expects, classifying each line by its level token and marshaling the
// append onto the Fyne UI thread.
type logViewWriter struct {
	view  *logging.LogView
	runUI func(func())
}

func (lw logViewWriter) Write(p []byte) (int, error) {
	s := strings.TrimRight(string(p), "\n")
	up := strings.ToUpper(s)
	var level logging.LogLevel
	switch {
	case strings.Contains(up, "ERROR") || strings.Contains(up, "FATAL"):
		level = logging.LogError
	case strings.Contains(up, "WARN"):
		level = logging.LogWarning
	default:
		level = logging.LogInfo
	}
	lw.runUI(func() { lw.view.Append(level, s) })
	return len(p), nil
}
