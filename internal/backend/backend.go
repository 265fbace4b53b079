// Package backend defines the capability surface shared by the transfer
// backends and the error taxonomy the router classifies outcomes with.
//
// Transport-level failures never leave a backend package in their raw shape;
// they are wrapped into ErrBackendUnreachable so the router sees one
// classification regardless of which binding failed.
package backend

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors classifying transfer failures. Business rejections from
// the share-resolution service keep their specific sentinel; everything the
// transport throws collapses into ErrBackendUnreachable.
var (
	ErrLinkExpired        = errors.New("share link is invalid or expired")
	ErrWrongPassword      = errors.New("share password is wrong")
	ErrReceiverLimit      = errors.New("share receiver limit reached")
	ErrAuthExpired        = errors.New("backend session expired and could not be re-established")
	ErrAuthInvalid        = errors.New("backend credential rejected")
	ErrTaskRejected       = errors.New("backend rejected the task")
	ErrBackendUnreachable = errors.New("backend unreachable")
	ErrFeatureUnavailable = errors.New("no configured backend handles this resource type")
)

// Ack acknowledges a submitted transfer. Backends must provide an explicit
// success indication; the adapters never infer success from a silent
// response on a failed transport call.
type Ack struct {
	OK      bool
	Message string
}

// TaskStatus describes one offline task reported by the queue backend.
type TaskStatus struct {
	Name      string
	Size      int64
	Percent   float64
	Finished  bool
	UpdatedAt time.Time
}

// SystemInfo is the unauthenticated health probe payload.
type SystemInfo struct {
	Ready   bool
	User    string
	Version string
}

// ShareSaver saves a share link into remote storage.
type ShareSaver interface {
	AddSharedLink(ctx context.Context, shareURL, password, targetFolder string) (Ack, error)
}

// OfflineQueuer submits offline download tasks and reports their status.
type OfflineQueuer interface {
	ShareSaver
	AddOfflineTask(ctx context.Context, urls, targetFolder string) (Ack, error)
	ListOfflineStatus(ctx context.Context, path string, forceRefresh bool) ([]TaskStatus, error)
	SystemInfo(ctx context.Context) (SystemInfo, error)
}
