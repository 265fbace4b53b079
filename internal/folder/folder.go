// Package folder resolves slash-separated destination paths into remote
// folder identifiers, creating missing segments along the way.
package folder

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"ferry/internal/logging"
)

// ErrAlreadyExists is returned by Service.MakeFolder when the name is taken.
// The resolver recovers by re-listing the parent and reusing the existing
// folder, so concurrent creators converge on the same identifier.
var ErrAlreadyExists = errors.New("folder already exists")

// Entry is one child of a remote folder.
type Entry struct {
	ID    string
	Name  string
	IsDir bool
}

// Service is the minimal folder surface a storage backend must offer.
type Service interface {
	// RootID identifies the storage root.
	RootID() string
	// ListChildren lists the direct children of folderID.
	ListChildren(ctx context.Context, folderID string) ([]Entry, error)
	// MakeFolder creates name under parentID and returns the new folder's
	// identifier, or ErrAlreadyExists when a sibling already holds the name.
	MakeFolder(ctx context.Context, parentID, name string) (string, error)
}

// Resolver walks destination paths segment by segment, reusing folders that
// already exist and creating the ones that do not.
type Resolver struct {
	svc    Service
	logger *slog.Logger
	fold   cases.Caser
}

// New builds a resolver over svc.
func New(svc Service, logger *slog.Logger) *Resolver {
	return &Resolver{
		svc:    svc,
		logger: logging.NewComponentLogger(logger, "folder"),
		fold:   cases.Fold(),
	}
}

// Resolve maps path to a folder identifier. The empty path, "/", and the
// root identifier itself short-circuit to the root without any remote calls.
// When a segment can neither be found nor created the resolver degrades to
// the root rather than failing the transfer; degraded reports that choice.
func (r *Resolver) Resolve(ctx context.Context, path string) (id string, degraded bool, err error) {
	root := r.svc.RootID()
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == "/" || trimmed == root {
		return root, false, nil
	}

	current := root
	for _, segment := range splitPath(trimmed) {
		next, err := r.step(ctx, current, segment)
		if err != nil {
			r.logger.Warn("destination folder unavailable, degrading to root",
				logging.String("path", path),
				logging.String("segment", segment),
				logging.Error(err))
			return root, true, nil
		}
		current = next
	}
	return current, false, nil
}

// step finds or creates one segment under parentID.
func (r *Resolver) step(ctx context.Context, parentID, name string) (string, error) {
	if id, found, err := r.find(ctx, parentID, name); err != nil {
		return "", err
	} else if found {
		return id, nil
	}

	id, err := r.svc.MakeFolder(ctx, parentID, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrAlreadyExists) {
		return "", err
	}

	// Lost a creation race; the folder must be visible in a fresh listing.
	id, found, err := r.find(ctx, parentID, name)
	if err != nil {
		return "", err
	}
	if !found {
		return "", errors.New("folder reported as existing but not listed")
	}
	return id, nil
}

func (r *Resolver) find(ctx context.Context, parentID, name string) (string, bool, error) {
	children, err := r.svc.ListChildren(ctx, parentID)
	if err != nil {
		return "", false, err
	}
	want := r.fold.String(name)
	for _, child := range children {
		if child.IsDir && r.fold.String(child.Name) == want {
			return child.ID, true, nil
		}
	}
	return "", false, nil
}

func splitPath(path string) []string {
	var segments []string
	for _, part := range strings.Split(path, "/") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return segments
}
