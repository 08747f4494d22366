package config

import "testing"

func TestValidateRejectsUnknownOrphanHandling(t *testing.T) {
	c := &LinkConfig{
		OrphanHandling:    "bogus",
		UnresolvedSymbols: UnresolvedReportAll,
		Endian:            "little",
		Inputs:            []string{"a.o"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected Validate to reject unknown orphan-handling policy")
	}
}

func TestValidateRejectsNoInputs(t *testing.T) {
	c := &LinkConfig{
		OrphanHandling:    OrphanPlace,
		UnresolvedSymbols: UnresolvedReportAll,
		Endian:            "little",
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected Validate to reject an empty input list")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := &LinkConfig{
		OrphanHandling:    OrphanPlace,
		UnresolvedSymbols: UnresolvedReportAll,
		Endian:            "little",
		Inputs:            []string{"a.o"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
