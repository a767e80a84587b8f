package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hernandocastelli/zone-transfer/report"
	"github.com/hernandocastelli/zone-transfer/resolver"
	"github.com/hernandocastelli/zone-transfer/transfer"
	"github.com/hernandocastelli/zone-transfer/zonefile"
)

var (
	format     = flag.String("format", "table", "output format: csv, html, or table")
	outPath    = flag.String("out", "", "report file path, defaults to <domain>.csv or <domain>.html, '-' for stdout")
	nameserver = flag.String("ns", "", "resolver to use for NS and address lookups, if not set system default is used")
	timeout    = flag.Duration("timeout", 10*time.Second, "timeout per DNS query and transfer dial")
	parallel   = flag.Uint("parallel", 4, "number of parallel zone transfer attempts")
	saveDir    = flag.String("save", "", "directory to save leaked zones in, disabled when empty")
	verbose    = flag.Bool("verbose", false, "enable verbose output")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <domain>\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	domain, err := resolver.Normalize(flag.Arg(0))
	check(err)

	r, err := buildResolver()
	check(err)
	r.Verbose = *verbose
	if *verbose {
		log.Printf("Using resolver %s", r.Server())
	}

	// nameserver discovery failure is the only fatal condition
	servers, err := r.Nameservers(domain)
	check(err)
	for _, ns := range servers {
		log.Printf("Found NS: %s (%d addresses)", ns.Host, len(ns.IPs))
	}

	client := transfer.NewClient()
	client.DialTimeout = *timeout
	client.Verbose = *verbose
	results := client.Run(domain, servers, int(*parallel))

	for _, res := range results {
		if res.Status == transfer.StatusVulnerable {
			log.Printf("%s (%s) allows zone transfer: %d records leaked", res.Nameserver, res.IP, len(res.Records))
		} else {
			log.Printf("%s: %s", res.Nameserver, res.Status)
		}
	}

	check(writeReport(domain, results))

	if *saveDir != "" {
		for _, res := range results {
			if res.Status != transfer.StatusVulnerable {
				continue
			}
			path, err := zonefile.Save(*saveDir, res)
			check(err)
			log.Printf("Saved zone from %s to %s", res.Nameserver, path)
		}
	}
}

func writeReport(domain string, results []transfer.Result) error {
	reporter, err := report.ForFormat(*format)
	if err != nil {
		return err
	}

	if *format == "table" || *outPath == "-" {
		return reporter.Write(os.Stdout, domain, results)
	}

	path := *outPath
	if path == "" {
		path = fmt.Sprintf("%s.%s", domain, *format)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := reporter.Write(f, domain, results); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("Report written to %s", path)
	return nil
}

func buildResolver() (*resolver.Resolver, error) {
	if *nameserver != "" {
		return resolver.New(*nameserver, *timeout), nil
	}
	return resolver.FromSystem(*timeout)
}

func check(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
