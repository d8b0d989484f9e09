package fsm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/superfly/fsm"
)

// checkRetries aborts once a state has been retried maxRetries times.
func (m *Machine) checkRetries(ctx context.Context, state, userID string) error {
	if retryCount := fsm.RetryFromContext(ctx); retryCount >= uint64(m.maxRetries) {
		slog.Error("max_retries_exceeded", "state", state, "user_id", userID, "max_retries", m.maxRetries)
		return fsm.Abort(fmt.Errorf("max retries (%d) exceeded", m.maxRetries))
	}
	return nil
}

func response(req *fsm.Request[RefreshRequest, RefreshResponse]) *RefreshResponse {
	if req.W.Msg == nil {
		return &RefreshResponse{}
	}
	return req.W.Msg
}

// handleLoadLines records how many lines the cart holds. Any store error aborts.
func (m *Machine) handleLoadLines(ctx context.Context, req *fsm.Request[RefreshRequest, RefreshResponse]) (*fsm.Response[RefreshResponse], error) {
	slog.Info("fsm_state_load_lines", "user_id", req.Msg.UserID)

	if err := m.checkRetries(ctx, StateLoadLines, req.Msg.UserID); err != nil {
		return nil, err
	}

	resp := response(req)
	if err := m.loadLines(ctx, req.Msg, resp); err != nil {
		return nil, fsm.Abort(err)
	}
	return fsm.NewResponse(resp), nil
}

func (m *Machine) loadLines(ctx context.Context, req *RefreshRequest, resp *RefreshResponse) error {
	lines, err := m.store.Lines(ctx, req.UserID)
	if err != nil {
		slog.Error("load_lines_failed", "user_id", req.UserID, "error", err)
		return err
	}
	resp.LineCount = len(lines)
	resp.Status = StatusLoaded
	return nil
}

// handleRefreshSnapshots re-fetches products. Per-line failures are reported, not retried.
func (m *Machine) handleRefreshSnapshots(ctx context.Context, req *fsm.Request[RefreshRequest, RefreshResponse]) (*fsm.Response[RefreshResponse], error) {
	slog.Info("fsm_state_refresh_snapshots", "user_id", req.Msg.UserID)

	if err := m.checkRetries(ctx, StateRefreshSnapshots, req.Msg.UserID); err != nil {
		return nil, err
	}

	resp := response(req)
	if err := m.refreshSnapshots(ctx, req.Msg, resp); err != nil {
		return nil, err
	}
	return fsm.NewResponse(resp), nil
}

func (m *Machine) refreshSnapshots(ctx context.Context, req *RefreshRequest, resp *RefreshResponse) error {
	report, err := m.store.RefreshSnapshots(ctx, req.UserID)
	if err != nil {
		slog.Error("refresh_snapshots_failed", "user_id", req.UserID, "error", err)
		return err
	}
	resp.Refreshed = report.Refreshed
	resp.Failed = report.Failed
	resp.Status = StatusRefreshed
	return nil
}

func (m *Machine) handleComplete(ctx context.Context, req *fsm.Request[RefreshRequest, RefreshResponse]) (*fsm.Response[RefreshResponse], error) {
	slog.Info("fsm_state_complete", "user_id", req.Msg.UserID)

	if err := m.checkRetries(ctx, StateComplete, req.Msg.UserID); err != nil {
		return nil, err
	}

	resp := response(req)
	if err := m.complete(ctx, req.Msg, resp); err != nil {
		return nil, err
	}

	slog.Info("fsm_complete", "user_id", req.Msg.UserID, "item_count", resp.ItemCount, "refreshed", resp.Refreshed, "failed", len(resp.Failed))
	return fsm.NewResponse(resp), nil
}

func (m *Machine) complete(ctx context.Context, req *RefreshRequest, resp *RefreshResponse) error {
	count, err := m.store.Count(ctx, req.UserID)
	if err != nil {
		slog.Error("count_failed", "user_id", req.UserID, "error", err)
		return err
	}
	resp.ItemCount = count
	resp.Status = StatusComplete
	return nil
}
