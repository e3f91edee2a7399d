package handler

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"meterease/internal/logger"
)

// ShowLogsHandler serves {level}.log as text/plain.
func ShowLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level, ok := loggerLevel(w, r)
		if !ok {
			return
		}

		filePath := logger.Path(level)
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Log file not found: " + level.FileName()))
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")

		http.ServeFile(w, r, filePath)
	}
}

// ClearLogsHandler truncates {level}.log.
func ClearLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level, ok := loggerLevel(w, r)
		if !ok {
			return
		}
		if err := logger.CleanLogs(level); err != nil {
			logger.Error("Error clearing logs: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		logger.Info("File %s has been cleared.", level.FileName())
		w.WriteHeader(http.StatusNoContent)
	}
}

func loggerLevel(w http.ResponseWriter, r *http.Request) (logger.Level, bool) {
	level, ok := logger.ParseLevel(mux.Vars(r)["level"])
	if !ok {
		http.NotFound(w, r)
	}
	return level, ok
}
