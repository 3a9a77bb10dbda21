//go:build !atsapi

package main

import (
	"errors"

	"github.com/nasa-jpl/golaborate-ats/alazar"
)

var errNoATSApi = errors.New("atsdaq was built without the atsapi tag, only Mock: true is available")

func openBoard(b Board) (alazar.Hardware, error) {
	return nil, errNoATSApi
}
