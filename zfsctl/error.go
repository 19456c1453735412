package zfsctl

import (
	"errors"
	"strings"

	"github.com/hrefhref/sanoid/executor"
)

const (
	datasetNotFoundMessage = "dataset does not exist"
	datasetBusyMessage     = "dataset is busy"
	datasetExistsMessage1  = "destination '"
	datasetExistsMessage2  = "' exists"
)

// Sentinel errors, grounded on the stderr-sniffing pattern of
// vansante-go-zfsutils/error.go's createError, trimmed to three stderr
// messages. Of these, callers in this module branch only on
// ErrDatasetNotFound.
var (
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrDatasetExists   = errors.New("dataset already exists")
	ErrDatasetBusy     = errors.New("pool or dataset busy")
)

// classify rewrites a *executor.CommandError into one of the sentinels
// above when its stderr matches a recognized ZFS failure message, the way
// vansante-go-zfsutils/error.go's createError does for the wider set of
// ZFS errors that library cares about. Unrecognized failures are returned
// unchanged.
func classify(err error) error {
	var cmdErr *executor.CommandError
	if !errors.As(err, &cmdErr) {
		return err
	}

	switch {
	case strings.Contains(cmdErr.Stderr, datasetNotFoundMessage):
		return ErrDatasetNotFound
	case strings.Contains(cmdErr.Stderr, datasetBusyMessage):
		return ErrDatasetBusy
	case strings.Contains(cmdErr.Stderr, datasetExistsMessage1) && strings.Contains(cmdErr.Stderr, datasetExistsMessage2):
		return ErrDatasetExists
	}
	return err
}
