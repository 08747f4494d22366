package diag

import "testing"

func TestCollectorAbortsOnlyAfterError(t *testing.T) {
	c, err := NewCollector("")
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	c.Warnf("scan", "orphan section %s placed by default policy", ".custom")
	if err := c.Abort("scan"); err != nil {
		t.Fatalf("Abort should not fire on warnings only, got %v", err)
	}

	c.Errorf("scan", "undefined symbol %s", "foo")
	if err := c.Abort("scan"); err == nil {
		t.Fatalf("expected Abort to fire after an Error diagnostic")
	}
}

func TestCollectorRecordsInOrder(t *testing.T) {
	c, err := NewCollector("")
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	c.Notef("resolve", "first")
	c.Warnf("resolve", "second")
	c.Errorf("resolve", "third")

	records := c.Records()
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Severity != Note || records[1].Severity != Warning || records[2].Severity != Error {
		t.Fatalf("unexpected severities: %+v", records)
	}
}
