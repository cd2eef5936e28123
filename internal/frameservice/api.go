package frameservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"stockrobotv1/internal/indicator"
	"stockrobotv1/internal/model"
	"stockrobotv1/internal/portfolio"
)

// startHTTP launches the HTTP API for indicator registration, value reads,
// and portfolio management.
func (svc *Service) startHTTP(ctx context.Context) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/indicators", svc.handleIndicators)
		mux.HandleFunc("/values", svc.handleValues)
		mux.HandleFunc("/portfolio", svc.handlePortfolio)
		mux.HandleFunc("/portfolio/positions", svc.handlePositions)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "ok")
		})
		log.Printf("[frameservice] HTTP server on %s (/indicators, /values, /portfolio)", svc.cfg.HTTPAddr)
		if err := http.ListenAndServe(svc.cfg.HTTPAddr, mux); err != nil {
			log.Printf("[frameservice] HTTP server error: %v", err)
		}
	}()
	_ = ctx
}

// handleIndicators handles GET (list registered) and POST (register new).
func (svc *Service) handleIndicators(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, svc.engine.Registry().Records())

	case http.MethodPost:
		var rec indicator.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		reqCtx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if err := svc.RegisterIndicator(reqCtx, rec); err != nil {
			code := http.StatusInternalServerError
			if errors.Is(err, indicator.ErrInvalidParameter) {
				code = http.StatusBadRequest
			}
			http.Error(w, err.Error(), code)
			return
		}
		writeJSON(w, map[string]interface{}{
			"status":     "ok",
			"registered": svc.engine.Registry().Len(),
		})

	default:
		http.Error(w, "GET or POST only", http.StatusMethodNotAllowed)
	}
}

// handleValues serves the latest published indicator values.
// Optional query params: symbol, indicator.
func (svc *Service) handleValues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
	name := r.URL.Query().Get("indicator")

	svc.valMu.RLock()
	defer svc.valMu.RUnlock()

	var out []model.IndicatorValue
	for sym, bySymbol := range svc.latestValues {
		if symbol != "" && sym != symbol {
			continue
		}
		for ind, v := range bySymbol {
			if name != "" && ind != name {
				continue
			}
			out = append(out, v)
		}
	}
	writeJSON(w, out)
}

// handlePortfolio serves the portfolio valuation summary.
func (svc *Service) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]interface{}{
		"summary":   svc.holdings.GetSummary(),
		"positions": svc.holdings.Positions(),
	})
}

// handlePositions handles POST (add holding) and DELETE (?symbol=).
func (svc *Service) handlePositions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var pos portfolio.Position
		if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := svc.holdings.Add(pos); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})

	case http.MethodDelete:
		symbol := strings.ToUpper(r.URL.Query().Get("symbol"))
		if symbol == "" {
			http.Error(w, "symbol query param required", http.StatusBadRequest)
			return
		}
		if !svc.holdings.Remove(symbol) {
			http.Error(w, "symbol not held", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})

	default:
		http.Error(w, "POST or DELETE only", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
