// Package router dispatches selected resources to the transfer backend
// responsible for their type and classifies the result.
package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ferry/internal/backend"
	"ferry/internal/logging"
	"ferry/internal/media"
	"ferry/internal/metrics"
	"ferry/internal/sharelink"
)

// Status summarises how a routed transfer ended.
type Status string

const (
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
	StatusUnavailable Status = "unavailable"
)

// Backend names used in outcomes and metrics labels.
const (
	BackendDrive115   = "drive115"
	BackendCloudDrive = "clouddrive"
	backendNone       = "none"
)

// Outcome reports one routed transfer.
type Outcome struct {
	ID          string
	Status      Status
	Backend     string
	Reason      string
	Message     string
	Title       string
	SizeLabel   string
	Destination string
	Degraded    bool
}

// Succeeded reports whether the transfer was accepted by a backend.
func (o Outcome) Succeeded() bool { return o.Status == StatusSucceeded }

// ShareReceiver saves a parsed share into a resolved folder. Implemented by
// the drive115 client.
type ShareReceiver interface {
	SaveShare(ctx context.Context, shareCode, receiveCode, targetCID string) (backend.Ack, error)
}

// FolderResolver maps a destination path onto a folder identifier.
type FolderResolver interface {
	Resolve(ctx context.Context, path string) (id string, degraded bool, err error)
}

// Options wires the router. Nil backends mean the matching resource types
// are unavailable; the router never probes the network to find that out.
type Options struct {
	Receiver    ShareReceiver
	Folders     FolderResolver
	Queue       backend.OfflineQueuer
	Parser      *sharelink.Parser
	SavePath    string // drive115 destination for shares
	CloudPath   string // clouddrive destination for shares
	OfflinePath string // clouddrive destination for offline tasks
	Metrics     metrics.Recorder
}

// Router picks a backend per resource type and normalises the result into
// an Outcome.
type Router struct {
	opts   Options
	logger *slog.Logger
}

// New builds a router from opts.
func New(opts Options, logger *slog.Logger) *Router {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	return &Router{opts: opts, logger: logging.NewComponentLogger(logger, "router")}
}

// Route submits res to the backend handling its type. The returned outcome
// always carries a fresh transfer id and echoes the resource title and size
// so callers can report without re-reading the resource.
func (r *Router) Route(ctx context.Context, res media.Resource) Outcome {
	out := Outcome{
		ID:        uuid.NewString(),
		Title:     res.Title,
		SizeLabel: res.SizeLabel,
		Backend:   backendNone,
	}

	started := time.Now()
	switch res.Type {
	case media.ResourceShare:
		r.routeShare(ctx, res, &out)
	case media.ResourceMagnet, media.ResourceED2K:
		r.routeOffline(ctx, res, &out)
	default:
		out.Status = StatusUnavailable
		out.Reason = "feature_unavailable"
		out.Message = backend.ErrFeatureUnavailable.Error()
	}

	if out.Backend != backendNone {
		r.opts.Metrics.RecordBackendLatency(out.Backend, time.Since(started))
	}
	r.opts.Metrics.RecordTransfer(out.Backend, outcomeLabel(out))
	r.logger.Info("transfer routed",
		logging.String("transfer_id", out.ID),
		logging.String("resource_type", res.Type.String()),
		logging.String("backend", out.Backend),
		logging.String("status", string(out.Status)),
		logging.String("reason", out.Reason))
	return out
}

func (r *Router) routeShare(ctx context.Context, res media.Resource, out *Outcome) {
	code, password, err := r.opts.Parser.Parse(res.Locator)
	if err != nil {
		out.Status = StatusFailed
		out.Reason = "not_parseable"
		out.Message = err.Error()
		return
	}

	switch {
	case r.opts.Receiver != nil:
		out.Backend = BackendDrive115
		cid, degraded, err := r.opts.Folders.Resolve(ctx, r.opts.SavePath)
		if err != nil {
			r.fail(out, err)
			return
		}
		out.Degraded = degraded
		out.Destination = r.opts.SavePath
		if degraded {
			out.Destination = "/"
		}
		ack, err := r.opts.Receiver.SaveShare(ctx, code, password, cid)
		r.finish(out, ack, err)
	case r.opts.Queue != nil:
		out.Backend = BackendCloudDrive
		out.Destination = r.opts.CloudPath
		ack, err := r.opts.Queue.AddSharedLink(ctx, res.Locator, password, r.opts.CloudPath)
		r.finish(out, ack, err)
	default:
		out.Status = StatusUnavailable
		out.Reason = "feature_unavailable"
		out.Message = "no share backend configured"
	}
}

func (r *Router) routeOffline(ctx context.Context, res media.Resource, out *Outcome) {
	if r.opts.Queue == nil {
		out.Status = StatusUnavailable
		out.Reason = "feature_unavailable"
		out.Message = "no offline queue backend configured"
		return
	}
	out.Backend = BackendCloudDrive
	out.Destination = r.opts.OfflinePath
	ack, err := r.opts.Queue.AddOfflineTask(ctx, res.Locator, r.opts.OfflinePath)
	r.finish(out, ack, err)
}

func (r *Router) finish(out *Outcome, ack backend.Ack, err error) {
	if err != nil {
		r.fail(out, err)
		return
	}
	out.Status = StatusSucceeded
	out.Message = ack.Message
}

func (r *Router) fail(out *Outcome, err error) {
	out.Status = StatusFailed
	out.Reason = classify(err)
	out.Message = err.Error()
}

// classify maps backend errors onto stable reason labels.
func classify(err error) string {
	switch {
	case errors.Is(err, backend.ErrLinkExpired):
		return "link_expired"
	case errors.Is(err, backend.ErrWrongPassword):
		return "wrong_password"
	case errors.Is(err, backend.ErrReceiverLimit):
		return "receiver_limit"
	case errors.Is(err, backend.ErrAuthExpired):
		return "auth_expired"
	case errors.Is(err, backend.ErrAuthInvalid):
		return "auth_invalid"
	case errors.Is(err, backend.ErrTaskRejected):
		return "task_rejected"
	case errors.Is(err, backend.ErrBackendUnreachable):
		return "backend_unreachable"
	case errors.Is(err, sharelink.ErrNotShareLink):
		return "not_parseable"
	default:
		return "internal"
	}
}

func outcomeLabel(out Outcome) string {
	if out.Status == StatusSucceeded {
		return "success"
	}
	if out.Reason != "" {
		return out.Reason
	}
	return string(out.Status)
}
