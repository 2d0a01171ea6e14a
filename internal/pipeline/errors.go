package pipeline

import "errors"

var (
	// ErrEditInFlight rejects an edit while another edit's cascade runs.
	ErrEditInFlight = errors.New("pipeline: edit already in flight")
	// ErrNoVoxel means no voxel near the edit position matched.
	ErrNoVoxel = errors.New("pipeline: no matching voxel near position")
	// ErrChunkNotLoaded means the edit position lies in a chunk that is not loaded.
	ErrChunkNotLoaded = errors.New("pipeline: chunk not loaded")
	// ErrOutOfRange means the edit position is loaded but too close to the
	// edge of the interest radius for every chunk around it to be meshed.
	ErrOutOfRange = errors.New("pipeline: edit position outside editable range")
	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("pipeline: scheduler closed")
)
