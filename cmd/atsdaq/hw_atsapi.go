//go:build atsapi

package main

import (
	"github.com/nasa-jpl/golaborate-ats/alazar"
	"github.com/nasa-jpl/golaborate-ats/alazar/atsapi"
)

func openBoard(b Board) (alazar.Hardware, error) {
	return atsapi.Open(b.SystemID, b.BoardID)
}
