package main

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/iluksbr/udpftp/internal/config"
	"github.com/iluksbr/udpftp/internal/listing"
	"github.com/iluksbr/udpftp/internal/logger"
	"github.com/iluksbr/udpftp/internal/logging"
	"github.com/iluksbr/udpftp/internal/session"
	"github.com/iluksbr/udpftp/internal/ui"
)

// Gera imagem simples com barras verticais representando velocidades recentes
// de transferência, normalizadas pelo maior valor observado.
func drawSpark(rates []float64, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	if len(rates) == 0 || w <= 0 || h <= 0 {
		return img
	}
	max := 0.0
	for _, v := range rates {
		if v > max {
			max = v
		}
	}
	if max <= 0 {
		max = 1
	}
	n := len(rates)
	for i := 0; i < w; i++ {
		idx := i * n / w
		if idx >= n {
			idx = n - 1
		}
		val := rates[idx]
		bh := int((val / max) * float64(h))
		for y := h - 1; y >= h-bh && y >= 0; y-- {
			img.Set(i, y, color.RGBA{0, 0, 255, 255})
		}
	}
	return img
}

// Interface gráfica do cliente: coleta parâmetros de transferência e exibe
// progresso, taxa instantânea e logs durante a transferência.
func main() {
	if runtime.GOOS == "windows" && strings.TrimSpace(os.Getenv("FYNE_DRIVER")) == "" {
		_ = os.Setenv("FYNE_DRIVER", "software")
	}

	clientSettings, err := config.LoadClientSettings()
	if err != nil {
		clientSettings = config.DefaultClientSettings()
	}

	a := app.New()
	a.Settings().SetTheme(ui.NewCustomTheme())
	w := a.NewWindow("udpftp Client")

	hostEntry := widget.NewEntry()
	hostEntry.SetText(clientSettings.Host)
	portEntry := widget.NewEntry()
	portEntry.SetText(clientSettings.Port)
	fileSelect := widget.NewSelectEntry([]string{clientSettings.LastFile})
	fileSelect.SetText(clientSettings.LastFile)
	outputEntry := widget.NewEntry()
	outputEntry.SetText(clientSettings.OutputPath)
	outputEntry.SetPlaceHolder("output path or directory (e.g. /tmp or /tmp/file.bin)")
	chooseDirBtn := widget.NewButton("Choose folder...", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil || uri == nil {
				return
			}
			outputEntry.SetText(uri.Path())
		}, w)
	})

	rateEntry := widget.NewEntry()
	rateEntry.SetText(fmt.Sprintf("%.2f", clientSettings.ErrorRate))
	windowEntry := widget.NewEntry()
	windowEntry.SetText(strconv.Itoa(clientSettings.WindowSize))
	bufferEntry := widget.NewEntry()
	bufferEntry.SetText(strconv.Itoa(clientSettings.BufferSize))

	status := ui.NewStatusBar()
	status.SetStatus("Idle")
	stats := widget.NewLabel("Bytes: 0 | Frames: 0 | Rate: 0 B/s")
	logView := logging.NewLogView()
	runUI := func(fn func()) { fyne.Do(fn) }

	appendLog := func(s string) {
		runUI(func() {
			up := strings.ToUpper(s)
			var level logging.LogLevel
			switch {
			case strings.Contains(up, "ERROR") || strings.Contains(up, "FATAL"):
				level = logging.LogError
			case strings.Contains(up, "WARN"):
				level = logging.LogWarning
			case strings.Contains(up, "COMPLETE") || strings.Contains(up, "OK"):
				level = logging.LogSuccess
			default:
				level = logging.LogInfo
			}
			logView.Append(level, s)
		})
	}
	log := logger.NewLogger(logger.INFO, logWriterFunc(appendLog), "client")

	var rates []float64
	spark := canvas.NewRaster(func(w, h int) image.Image { return drawSpark(rates, w, h) })
	spark.SetMinSize(fyne.NewSize(400, 100))

	var progBytes uint64
	var progFrames uint64
	var lastUIBytes uint64
	lastUITick := time.Now()
	var lastRate float64

	listBtn := widget.NewButton("List files on server", func() {
		host := strings.TrimSpace(hostEntry.Text)
		p, _ := strconv.Atoi(strings.TrimSpace(portEntry.Text))
		names, err := listing.Query(host, p, 2*time.Second)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		fileSelect.SetOptions(names)
		if len(names) > 0 {
			fileSelect.SetText(names[0])
		}
	})

	var startBtn, stopBtn *widget.Button
	var cancelCh chan struct{}
	transferRunning := false

	safeClose := func(ch chan struct{}) {
		if ch == nil {
			return
		}
		defer func() { _ = recover() }()
		close(ch)
	}

	startBtn = widget.NewButton("Start", func() {
		if transferRunning {
			return
		}

		params := config.ValidationParams{
			Host:       hostEntry.Text,
			Port:       portEntry.Text,
			FilePath:   fileSelect.Text,
			ErrorRate:  rateEntry.Text,
			WindowSize: windowEntry.Text,
			BufferSize: bufferEntry.Text,
		}
		if errs := config.ValidateAll(params); len(errs) > 0 {
			var msg strings.Builder
			msg.WriteString("Validation errors:\n")
			for _, e := range errs {
				msg.WriteString(fmt.Sprintf("- %s\n", e.Error()))
			}
			dialog.ShowError(fmt.Errorf(msg.String()), w)
			return
		}

		host := strings.TrimSpace(hostEntry.Text)
		p, _ := strconv.Atoi(strings.TrimSpace(portEntry.Text))
		path := strings.TrimSpace(fileSelect.Text)
		rate, _ := strconv.ParseFloat(strings.TrimSpace(rateEntry.Text), 64)
		windowSize, _ := strconv.Atoi(strings.TrimSpace(windowEntry.Text))
		bufferSize, _ := strconv.Atoi(strings.TrimSpace(bufferEntry.Text))

		outPath := strings.TrimSpace(outputEntry.Text)
		if outPath == "" {
			outPath = "recv_" + filepath.Base(path)
			appendLog("no output path given; saving to: " + outPath)
		} else if st, err := os.Stat(outPath); err == nil && st.IsDir() {
			gen := filepath.Join(outPath, "recv_"+filepath.Base(path))
			appendLog("directory selected; file will be: " + gen)
			outPath = gen
		}

		cancelCh = make(chan struct{})
		transferRunning = true
		startBtn.Disable()
		stopBtn.Enable()
		progBytes, progFrames = 0, 0
		status.SetStatus("Transferring")
		status.SetInfo(path)
		status.SetProgress(0.01)

		onProgress := func(bytesDelivered uint64) {
			progBytes = bytesDelivered
			progFrames++
		}

		go func() {
			_, err := session.ClientRequestManaged(host, p, path, outPath, windowSize, bufferSize, rate, log, onProgress, cancelCh)
			if err != nil {
				appendLog("transfer failed: " + err.Error())
			} else {
				appendLog("transfer complete: " + outPath)
			}
			runUI(func() {
				transferRunning = false
				cancelCh = nil
				startBtn.Enable()
				stopBtn.Disable()
				status.SetProgress(0)
				if err != nil {
					status.SetStatus("Failed")
					status.SetInfo(err.Error())
				} else {
					status.SetStatus("Done")
					status.SetInfo(outPath)
				}
			})
		}()
	})
	stopBtn = widget.NewButton("Cancel", func() {
		if !transferRunning || cancelCh == nil {
			return
		}
		stopBtn.Disable()
		safeClose(cancelCh)
		cancelCh = nil
		status.SetStatus("Canceling")
		appendLog("transfer cancellation requested")
	})
	stopBtn.Disable()

	form := widget.NewForm(
		&widget.FormItem{Text: "Host", Widget: hostEntry},
		&widget.FormItem{Text: "Port", Widget: portEntry},
		&widget.FormItem{Text: "File", Widget: container.NewBorder(nil, nil, nil, listBtn, fileSelect)},
		&widget.FormItem{Text: "Output", Widget: container.NewBorder(nil, nil, nil, chooseDirBtn, outputEntry)},
		&widget.FormItem{Text: "Error rate", Widget: rateEntry},
		&widget.FormItem{Text: "Window size", Widget: windowEntry},
		&widget.FormItem{Text: "Buffer size", Widget: bufferEntry},
	)
	form.SubmitText = ""
	form.OnSubmit = nil

	startBtn.SetIcon(theme.ConfirmIcon())
	stopBtn.SetIcon(theme.CancelIcon())

	buttons := container.NewHBox(startBtn, stopBtn)
	topControls := container.NewVBox(form, buttons)

	formatRate := func(bps float64) string {
		units := []string{"B/s", "KB/s", "MB/s", "GB/s"}
		u := 0
		for bps >= 1024 && u < len(units)-1 {
			bps /= 1024
			u++
		}
		if bps >= 100 {
			return fmt.Sprintf("%.0f %s", bps, units[u])
		}
		if bps >= 10 {
			return fmt.Sprintf("%.1f %s", bps, units[u])
		}
		return fmt.Sprintf("%.2f %s", bps, units[u])
	}

	metricsSection := container.NewVBox(
		status,
		widget.NewLabel("Recent rate:"),
		spark,
		stats,
	)
	logSection := container.NewBorder(nil, nil, nil, nil,
		container.NewVBox(widget.NewLabel("Logs:"), logView.CanvasObject()),
	)

	w.SetContent(container.NewBorder(
		container.NewVBox(topControls, metricsSection),
		nil, nil, nil,
		logSection,
	))

	go func() {
		t := time.NewTicker(200 * time.Millisecond)
		defer t.Stop()
		for range t.C {
			runUI(func() {
				now := time.Now()
				dt := now.Sub(lastUITick).Seconds()
				if dt <= 0 {
					dt = 1e-6
				}
				b := progBytes
				s := progFrames
				rate := float64(b-lastUIBytes) / dt
				lastUIBytes = b
				lastUITick = now
				if len(rates) > 200 {
					rates = rates[len(rates)-200:]
				}
				rates = append(rates, rate)
				lastRate = rate
				stats.SetText(fmt.Sprintf("Bytes: %d | Frames: %d | Rate: %s", b, s, formatRate(lastRate)))
				spark.Refresh()
			})
		}
	}()

	w.Resize(fyne.NewSize(float32(clientSettings.WindowWidth), float32(clientSettings.WindowHeight)))

	w.SetCloseIntercept(func() {
		params := config.ClientUIParams{
			Host:       hostEntry.Text,
			Port:       portEntry.Text,
			LastFile:   fileSelect.Text,
			OutputPath: outputEntry.Text,
			ErrorRate:  func() float64 { v, _ := strconv.ParseFloat(rateEntry.Text, 64); return v }(),
			WindowSize: func() int { v, _ := strconv.Atoi(windowEntry.Text); return v }(),
			BufferSize: func() int { v, _ := strconv.Atoi(bufferEntry.Text); return v }(),
		}
		config.UpdateClientSettingsFromUI(clientSettings, params)

		size := w.Content().Size()
		clientSettings.WindowWidth = int(size.Width)
		clientSettings.WindowHeight = int(size.Height)

		if err := config.SaveClientSettings(clientSettings); err != nil {
			fmt.Printf("failed to save settings: %v\n", err)
		}

		w.Close()
	})

	w.ShowAndRun()
}

// logWriterFunc adapts a simple string-append callback to io.Writer so it
// can back a logger.Logger.
type logWriterFunc func(string)

func (f logWriterFunc) Write(p []byte) (int, error) {
	f(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
