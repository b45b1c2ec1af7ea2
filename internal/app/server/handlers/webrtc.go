package handlers

import (
	"net/http"
)

type iceServer struct {
	URLs string `json:"urls"`
}

// WebRTCHandler hands clients the ICE servers to use for peer connections.
type WebRTCHandler struct {
	servers  []iceServer
	poolSize int
}

func NewWebRTCHandler(urls []string, poolSize int) *WebRTCHandler {
	servers := make([]iceServer, 0, len(urls))
	for _, u := range urls {
		if u != "" {
			servers = append(servers, iceServer{URLs: u})
		}
	}
	return &WebRTCHandler{servers: servers, poolSize: poolSize}
}

func (h *WebRTCHandler) Config(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"iceServers":           h.servers,
		"iceCandidatePoolSize": h.poolSize,
	})
}
