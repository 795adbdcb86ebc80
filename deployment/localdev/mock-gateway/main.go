package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

type logLine struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

type metricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
}

type incident struct {
	Service   string    `json:"service"`
	Summary   string    `json:"summary"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

type changeEvent struct {
	Resource  string    `json:"resource"`
	Summary   string    `json:"summary"`
	Actor     string    `json:"actor"`
	ChangedAt time.Time `json:"changed_at"`
}

type traceResource struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	ARN    string `json:"arn"`
	Region string `json:"region"`
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/provider/health", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		writeJSON(w, map[string]any{
			"incidents": []incident{},
		})
	})

	mux.HandleFunc("/api/v1/changes", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		writeJSON(w, map[string]any{
			"events": []changeEvent{
				{
					Resource:  "checkout-handler",
					Summary:   "execution role policy updated",
					Actor:     "deploy-bot",
					ChangedAt: time.Now().Add(-25 * time.Minute),
				},
			},
		})
	})

	mux.HandleFunc("/api/v1/resources/config", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		writeJSON(w, map[string]any{
			"config": map[string]any{
				"timeout_seconds":    30,
				"memory_mb":          512,
				"execution_role":     "arn:aws:iam::123456789012:role/checkout-exec",
				"dead_letter_target": "",
			},
		})
	})

	mux.HandleFunc("/api/v1/resources/logs", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		writeJSON(w, map[string]any{
			"lines": []logLine{
				{
					Timestamp: time.Now().Add(-3 * time.Minute),
					Level:     "error",
					Message:   "AccessDenied: checkout-handler is not authorized to perform sqs:SendMessage on orders-queue (role arn:aws:iam::123456789012:role/checkout-exec)",
				},
				{
					Timestamp: time.Now().Add(-2 * time.Minute),
					Level:     "warn",
					Message:   "retry exhausted after 3 attempts",
				},
			},
		})
	})

	mux.HandleFunc("/api/v1/resources/metrics", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		now := time.Now()
		writeJSON(w, map[string]any{
			"series": []metricPoint{
				{Timestamp: now.Add(-4 * time.Minute), Metric: "errors", Value: 1},
				{Timestamp: now.Add(-3 * time.Minute), Metric: "errors", Value: 2},
				{Timestamp: now.Add(-2 * time.Minute), Metric: "errors", Value: 3},
				{Timestamp: now.Add(-1 * time.Minute), Metric: "errors", Value: 42},
			},
		})
	})

	mux.HandleFunc("/api/v1/traces", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		writeJSON(w, map[string]any{
			"resources": []traceResource{
				{
					Kind:   "compute-function",
					Name:   "checkout-handler",
					ARN:    "arn:aws:lambda:us-east-1:123456789012:function:checkout-handler",
					Region: "us-east-1",
				},
				{
					Kind:   "queue",
					Name:   "orders-queue",
					ARN:    "arn:aws:sqs:us-east-1:123456789012:orders-queue",
					Region: "us-east-1",
				},
			},
		})
	})

	logger := log.New(log.Writer(), "gateway-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":9090",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :9090")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
