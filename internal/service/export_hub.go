package service

import (
	"sync"

	"github.com/noah-isme/contrail/internal/dto"
)

const hubBuffer = 8

// ExportHub fans export progress out to websocket subscribers keyed by task id.
type ExportHub struct {
	mu   sync.Mutex
	subs map[string]map[chan dto.ExportStatusResponse]struct{}
}

// NewExportHub constructs an empty hub.
func NewExportHub() *ExportHub {
	return &ExportHub{subs: make(map[string]map[chan dto.ExportStatusResponse]struct{})}
}

// Subscribe registers a listener for taskID. The returned cancel func must be
// called once the listener is done; it closes the channel.
func (h *ExportHub) Subscribe(taskID string) (<-chan dto.ExportStatusResponse, func()) {
	ch := make(chan dto.ExportStatusResponse, hubBuffer)
	h.mu.Lock()
	if h.subs[taskID] == nil {
		h.subs[taskID] = make(map[chan dto.ExportStatusResponse]struct{})
	}
	h.subs[taskID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[taskID]; ok {
				if _, ok := set[ch]; ok {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(h.subs, taskID)
				}
			}
		})
	}
}

// Publish delivers status to every subscriber of its task. Slow listeners
// drop intermediate frames; terminal frames replace the oldest queued one.
func (h *ExportHub) Publish(status dto.ExportStatusResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[status.TaskID] {
		select {
		case ch <- status:
			continue
		default:
		}
		if !status.Status.Finished() {
			continue
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- status:
		default:
		}
	}
}

// Subscribers reports how many listeners taskID has.
func (h *ExportHub) Subscribers(taskID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[taskID])
}
