package manager

import (
	"time"

	"tutord/internal/llm"
	"tutord/pkg/types"
)

// StateView projects an engine state for the HTTP layer.
func StateView(st llm.State) types.StateView {
	v := types.StateView{Name: st.Kind.String(), Model: st.Model.ID, Message: st.Message}
	if st.Kind == llm.StateDownloading {
		p := st.Progress
		v.Progress = &p
	}
	return v
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	now := time.Now()
	resp := types.StatusResponse{
		State:           StateView(m.State()),
		QueueLen:        len(m.queueCh),
		Inflight:        len(m.slot),
		MaxQueueDepth:   cap(m.queueCh),
		UptimeSeconds:   int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix:  now.Unix(),
		InitializeTotal: m.initTotal.Load(),
	}
	if eng := m.current(); eng != nil {
		d := eng.Descriptor()
		resp.Model = d.ID
		resp.Runtime = string(d.RuntimeOrDefault())
		resp.Downloaded = m.deps.Store.Exists(d)
	}
	return resp
}
