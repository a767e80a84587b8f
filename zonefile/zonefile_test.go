package zonefile

import (
	"compress/gzip"
	"net"
	"os"
	"testing"

	"github.com/miekg/dns"

	"github.com/hernandocastelli/zone-transfer/transfer"
)

func testResult() transfer.Result {
	return transfer.Result{
		Zone:       "example.com",
		Nameserver: "ns2.example.com.",
		IP:         net.ParseIP("192.0.2.2"),
		Status:     transfer.StatusVulnerable,
		Records: []transfer.Record{
			{Name: "example.com.", Type: "SOA", TTL: 3600, Value: "ns1.example.com. hostmaster.example.com. 2024010101 7200 3600 1209600 300"},
			{Name: "www.example.com.", Type: "A", TTL: 300, Value: "192.0.2.10"},
			{Name: "mail.example.com.", Type: "CNAME", TTL: 300, Value: "ghs.example.net."},
		},
	}
}

// readZone decompresses a saved zone file and parses the records back out.
func readZone(t *testing.T, path string) []dns.RR {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open zone file: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("Failed to open gzip stream: %v", err)
	}
	defer gz.Close()

	var records []dns.RR
	parser := dns.NewZoneParser(gz, "", path)
	for rr, ok := parser.Next(); ok; rr, ok = parser.Next() {
		records = append(records, rr)
	}
	if err := parser.Err(); err != nil {
		t.Fatalf("Saved zone does not parse: %v", err)
	}
	return records
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	res := testResult()

	path, err := Save(dir, res)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Saved file missing: %v", err)
	}

	records := readZone(t, path)
	if len(records) != len(res.Records) {
		t.Fatalf("Expected %d records, got %d", len(res.Records), len(records))
	}
	for i, rr := range records {
		hdr := rr.Header()
		if hdr.Name != res.Records[i].Name {
			t.Errorf("Record %d name = %s, want %s", i, hdr.Name, res.Records[i].Name)
		}
		if dns.TypeToString[hdr.Rrtype] != res.Records[i].Type {
			t.Errorf("Record %d type = %s, want %s", i, dns.TypeToString[hdr.Rrtype], res.Records[i].Type)
		}
	}
}

func TestSaveFilename(t *testing.T) {
	dir := t.TempDir()
	path, err := Save(dir, testResult())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	want := "example.com_ns2.example.com_192.0.2.2.zone.gz"
	if got := path; got != dir+string(os.PathSeparator)+want {
		t.Errorf("Path = %q, want %q under %s", got, want, dir)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temporary file left behind")
	}
}

func TestFinishWithoutRecordsRemovesFile(t *testing.T) {
	dir := t.TempDir()
	res := testResult()
	res.Records = nil

	f := New(dir, res)
	if err := f.WriteComment("nameserver", res.Nameserver); err != nil {
		t.Fatalf("WriteComment failed: %v", err)
	}
	if err := f.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if _, err := os.Stat(f.Path()); !os.IsNotExist(err) {
		t.Error("Expected empty zone file to be removed")
	}
}

func TestFinishNeverOpened(t *testing.T) {
	f := New(t.TempDir(), testResult())
	if err := f.Finish(); err != nil {
		t.Fatalf("Finish on untouched file failed: %v", err)
	}
}

func TestAddRecordAfterFinish(t *testing.T) {
	res := testResult()
	f := New(t.TempDir(), res)
	if err := f.AddRecord(res.Records[0]); err != nil {
		t.Fatalf("AddRecord failed: %v", err)
	}
	if err := f.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if err := f.AddRecord(res.Records[1]); err != ErrFileClosed {
		t.Errorf("Expected ErrFileClosed, got %v", err)
	}
}

func TestAbortRemovesFile(t *testing.T) {
	res := testResult()
	f := New(t.TempDir(), res)
	if err := f.AddRecord(res.Records[0]); err != nil {
		t.Fatalf("AddRecord failed: %v", err)
	}
	if err := f.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	if _, err := os.Stat(f.Path()); !os.IsNotExist(err) {
		t.Error("Expected aborted file to be removed")
	}
	if _, err := os.Stat(f.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("Expected temporary file to be removed")
	}
}
