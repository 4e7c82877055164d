package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики relay-сервера.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farview_http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "farview_http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// WS метрики relay-сервера.
	wsActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "farview_ws_active_connections",
			Help: "Количество активных WebSocket соединений",
		},
	)

	roomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "farview_rooms_active",
			Help: "Количество комнат с хотя бы одним участником",
		},
	)

	// Метрики стороны хоста.
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "farview_sessions_active",
			Help: "Количество активных peer-сессий",
		},
	)

	framesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "farview_frames_sent_total",
			Help: "Количество отправленных видеокадров",
		},
	)

	captureErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "farview_capture_errors_total",
			Help: "Количество ошибок захвата/кодирования за итерацию",
		},
	)
)

// RecordHTTPMetrics записывает метрики одного HTTP запроса.
func RecordHTTPMetrics(method, endpoint string, status int, duration time.Duration) {
	strStatus := strconv.Itoa(status)

	httpRequestsTotal.WithLabelValues(method, endpoint, strStatus).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, strStatus).Observe(duration.Seconds())
}

func IncrementWSActiveConnections() { wsActiveConnections.Inc() }
func DecrementWSActiveConnections() { wsActiveConnections.Dec() }

func SetActiveRooms(count int) { roomsActive.Set(float64(count)) }

func IncrementActiveSessions() { sessionsActive.Inc() }
func DecrementActiveSessions() { sessionsActive.Dec() }

func IncrementFramesSent()    { framesSentTotal.Inc() }
func IncrementCaptureErrors() { captureErrorsTotal.Inc() }
