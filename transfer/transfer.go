// Package transfer attempts unauthenticated AXFR zone transfers against
// authoritative nameservers and classifies the outcome of each attempt.
// A refused transfer is the expected, safe outcome; a completed transfer
// is the vulnerability finding.
package transfer

import (
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"

	"github.com/hernandocastelli/zone-transfer/resolver"
)

const (
	defaultDialTimeout = 10 * time.Second
	defaultReadTimeout = 30 * time.Second
)

// Status classifies the outcome of testing one nameserver.
type Status string

const (
	// StatusVulnerable means the server completed an unauthenticated
	// transfer and leaked its zone.
	StatusVulnerable Status = "VULNERABLE"
	// StatusNotVulnerable means the server refused the transfer.
	StatusNotVulnerable Status = "NOT_VULNERABLE"
	// StatusUnresolvable means the nameserver hostname has no address,
	// so no transfer was attempted.
	StatusUnresolvable Status = "UNRESOLVABLE"
	// StatusInconclusive means a network-level failure prevented the test
	// from completing; the server may or may not be vulnerable.
	StatusInconclusive Status = "INCONCLUSIVE"
)

// Record is one DNS record leaked by a successful transfer.
type Record struct {
	Name  string
	Type  string
	TTL   uint32
	Value string
}

// Text renders the record as a zone file line.
func (r Record) Text() string {
	return fmt.Sprintf("%s\t%d\tIN\t%s\t%s", r.Name, r.TTL, r.Type, r.Value)
}

// Result is the outcome of testing one nameserver. Exactly one Result
// exists per discovered nameserver.
type Result struct {
	Zone       string
	Nameserver string
	// IP is the address the conclusive attempt was made against,
	// nil when the nameserver was unresolvable.
	IP      net.IP
	Status  Status
	Records []Record
	Err     error
}

// Client performs AXFR attempts.
type Client struct {
	DialTimeout time.Duration
	ReadTimeout time.Duration
	// Port overrides the nameserver port, 53 when empty.
	Port    string
	Verbose bool
}

// NewClient returns a Client with default timeouts.
func NewClient() *Client {
	return &Client{
		DialTimeout: defaultDialTimeout,
		ReadTimeout: defaultReadTimeout,
	}
}

// Run tests every nameserver and returns one Result per nameserver in the
// same order. Attempts run on a bounded worker pool; per-server failures
// are recorded in the Result, never returned.
func (c *Client) Run(zone string, servers []resolver.Nameserver, parallel int) []Result {
	if parallel < 1 {
		parallel = 1
	}
	if parallel > len(servers) {
		parallel = len(servers)
	}

	results := make([]Result, len(servers))
	jobs := make(chan int)
	var g errgroup.Group

	for i := 0; i < parallel; i++ {
		g.Go(func() error {
			for idx := range jobs {
				results[idx] = c.Attempt(zone, servers[idx])
			}
			return nil
		})
	}
	for i := range servers {
		jobs <- i
	}
	close(jobs)
	_ = g.Wait() // workers never return errors

	return results
}

// Attempt tests a single nameserver. Each of its addresses is tried in
// order until one attempt is conclusive.
func (c *Client) Attempt(zone string, ns resolver.Nameserver) Result {
	res := Result{Zone: zone, Nameserver: ns.Host}

	if len(ns.IPs) == 0 {
		res.Status = StatusUnresolvable
		res.Err = fmt.Errorf("%s has no resolvable address", ns.Host)
		return res
	}

	var refused, inconclusive *Result
	for _, ip := range ns.IPs {
		records, err := c.axfr(zone, ns.Host, ip)
		if err == nil && len(records) > 0 {
			return Result{
				Zone:       zone,
				Nameserver: ns.Host,
				IP:         ip,
				Status:     StatusVulnerable,
				Records:    records,
			}
		}

		attempt := Result{Zone: zone, Nameserver: ns.Host, IP: ip, Status: classify(err), Err: err}
		if attempt.Status == StatusNotVulnerable {
			if refused == nil {
				refused = &attempt
			}
		} else if inconclusive == nil {
			inconclusive = &attempt
		}
	}

	// an explicit refusal is a conclusive answer, a network failure is not
	if refused != nil {
		return *refused
	}
	return *inconclusive
}

// axfr performs one transfer against a single address and collects the
// records it yields.
func (c *Client) axfr(zone, nameserver string, ip net.IP) ([]Record, error) {
	addr := net.JoinHostPort(ip.String(), c.port())
	if c.Verbose {
		log.Printf("Trying AXFR: %s %s %s", zone, nameserver, addr)
	}

	m := new(dns.Msg)
	m.SetAxfr(dns.Fqdn(zone))

	t := &dns.Transfer{
		DialTimeout: c.DialTimeout,
		ReadTimeout: c.ReadTimeout,
	}
	env, err := t.In(m, addr)
	if err != nil {
		return nil, fmt.Errorf("transfer from %s (%s): %w", nameserver, addr, err)
	}

	var records []Record
	var envelope int
	for e := range env {
		if e.Error != nil {
			return nil, fmt.Errorf("transfer envelope %d from %s (%s): %w", envelope, nameserver, addr, e.Error)
		}
		for _, rr := range e.RR {
			records = append(records, newRecord(rr))
		}
		envelope++
	}
	if c.Verbose {
		log.Printf("%s %s (%s) xfr size: %d records (envelopes %d)", zone, nameserver, addr, len(records), envelope)
	}
	return records, nil
}

func (c *Client) port() string {
	if c.Port != "" {
		return c.Port
	}
	return "53"
}

// classify maps a transfer error to the outcome it proves. A server that
// answers the AXFR query with an error rcode, or with an answer that is
// not a zone, has declined the transfer; anything else proves nothing.
func classify(err error) Status {
	if err == nil {
		// transfer completed but yielded no records
		return StatusNotVulnerable
	}
	msg := err.Error()
	if strings.Contains(msg, "bad xfr rcode") || strings.Contains(msg, "no SOA") {
		return StatusNotVulnerable
	}
	return StatusInconclusive
}

func newRecord(rr dns.RR) Record {
	hdr := rr.Header()
	return Record{
		Name:  hdr.Name,
		Type:  dns.TypeToString[hdr.Rrtype],
		TTL:   hdr.Ttl,
		Value: strings.TrimPrefix(rrString(rr), hdr.String()),
	}
}

// rrString prints IPv4 IPs in AAAA records in IPv6 notation
// fixes https://github.com/miekg/dns/issues/1107
func rrString(rr dns.RR) string {
	if aaaa, ok := rr.(*dns.AAAA); ok {
		ipStr := aaaa.AAAA.String()
		if aaaa.AAAA.To4() != nil {
			ipStr = fmt.Sprintf("::ffff:%s", ipStr)
		}
		return aaaa.Hdr.String() + ipStr
	}
	return rr.String()
}
