// Package resolver discovers the authoritative nameservers for a domain.
// All lookups go through an explicitly configured upstream resolver so that
// the resolver address is injected configuration, never ambient state.
package resolver

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/weppos/publicsuffix-go/publicsuffix"
)

const defaultTimeout = 5 * time.Second

// ErrNoNameservers is returned when the target domain has no NS records.
var ErrNoNameservers = errors.New("no NS records found")

// Nameserver is one authoritative nameserver for the target domain.
// IPs is empty when the hostname did not resolve to any address.
type Nameserver struct {
	Host string
	IPs  []net.IP
}

// Resolver issues NS and address lookups against a single upstream resolver.
type Resolver struct {
	server  string
	client  dns.Client
	Verbose bool
}

// New returns a Resolver that queries the given upstream server.
// The server may be given as host or host:port; port 53 is assumed.
func New(server string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	r := &Resolver{server: server}
	r.client.Timeout = timeout
	r.client.Dialer = &net.Dialer{Timeout: timeout}
	return r
}

// FromResolvConf builds a Resolver from the first nameserver listed in a
// resolv.conf style file.
func FromResolvConf(path string, timeout time.Duration) (*Resolver, error) {
	conf, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	if len(conf.Servers) == 0 {
		return nil, fmt.Errorf("no nameservers in %s", path)
	}
	return New(net.JoinHostPort(conf.Servers[0], conf.Port), timeout), nil
}

// FromSystem builds a Resolver from the system resolver configuration.
func FromSystem(timeout time.Duration) (*Resolver, error) {
	return FromResolvConf("/etc/resolv.conf", timeout)
}

// Server returns the upstream resolver address in host:port form.
func (r *Resolver) Server() string {
	return r.server
}

// Normalize lowercases the domain, strips any trailing dot, and verifies
// that the name sits under a known public suffix.
func Normalize(domain string) (string, error) {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" {
		return "", errors.New("empty domain")
	}
	if _, err := publicsuffix.Parse(domain); err != nil {
		return "", fmt.Errorf("invalid domain %q: %w", domain, err)
	}
	return domain, nil
}

// Nameservers returns the authoritative nameservers for domain in the order
// the upstream resolver lists them. Hostnames that do not resolve are kept
// with an empty IP list so callers can still report on them.
func (r *Resolver) Nameservers(domain string) ([]Nameserver, error) {
	hosts, err := r.queryNS(domain)
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%s: %w", domain, ErrNoNameservers)
	}

	out := make([]Nameserver, 0, len(hosts))
	for _, host := range hosts {
		ips, err := r.LookupIP(host)
		if err != nil && r.Verbose {
			log.Printf("resolving %s: %v", host, err)
		}
		out = append(out, Nameserver{Host: host, IPs: ips})
	}
	return out, nil
}

// LookupIP resolves a hostname to all of its IPv4 and IPv6 addresses.
func (r *Resolver) LookupIP(host string) ([]net.IP, error) {
	v4, err4 := r.queryA(host)
	v6, err6 := r.queryAAAA(host)
	ips := append(v4, v6...)
	if len(ips) == 0 {
		if err4 != nil {
			return nil, err4
		}
		if err6 != nil {
			return nil, err6
		}
		return nil, fmt.Errorf("no addresses for %s", host)
	}
	return ips, nil
}

func (r *Resolver) queryNS(domain string) ([]string, error) {
	domain = dns.Fqdn(domain)
	if r.Verbose {
		log.Printf("DNS query: @%s NS %s", r.server, domain)
	}
	m := new(dns.Msg)
	m.SetQuestion(domain, dns.TypeNS)

	in, _, err := r.client.Exchange(m, r.server)
	if err != nil {
		return nil, fmt.Errorf("NS query for %s: %w", domain, err)
	}

	out := make([]string, 0, 4)
	for i := range in.Answer {
		if t, ok := in.Answer[i].(*dns.NS); ok {
			if r.Verbose {
				log.Printf("\t%s", t.Ns)
			}
			out = append(out, strings.ToLower(t.Ns))
		}
	}
	return out, nil
}

func (r *Resolver) queryA(host string) ([]net.IP, error) {
	host = dns.Fqdn(host)
	if r.Verbose {
		log.Printf("DNS query: @%s A %s", r.server, host)
	}
	m := new(dns.Msg)
	m.SetQuestion(host, dns.TypeA)

	in, _, err := r.client.Exchange(m, r.server)
	if err != nil {
		return nil, fmt.Errorf("A query for %s: %w", host, err)
	}

	out := make([]net.IP, 0, 1)
	for i := range in.Answer {
		if t, ok := in.Answer[i].(*dns.A); ok {
			out = append(out, t.A)
		}
	}
	return out, nil
}

func (r *Resolver) queryAAAA(host string) ([]net.IP, error) {
	host = dns.Fqdn(host)
	if r.Verbose {
		log.Printf("DNS query: @%s AAAA %s", r.server, host)
	}
	m := new(dns.Msg)
	m.SetQuestion(host, dns.TypeAAAA)

	in, _, err := r.client.Exchange(m, r.server)
	if err != nil {
		return nil, fmt.Errorf("AAAA query for %s: %w", host, err)
	}

	out := make([]net.IP, 0, 1)
	for i := range in.Answer {
		if t, ok := in.Answer[i].(*dns.AAAA); ok {
			out = append(out, t.AAAA)
		}
	}
	return out, nil
}
