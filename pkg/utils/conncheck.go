package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/roadtt-engine/log"
)

var (
	ErrNoAddress = errors.New("no address to wait for")

	natsURL = regexp.MustCompile(
		`^(?P<proto>nats|tls)://(.*@)?(?P<host>[^:/,]+)(:(?P<port>\d+))?`)
	dbURL = regexp.MustCompile(
		`^postgres(ql)?://(.*@)(?P<host>[^:/?]+)(:(?P<port>\d+))?/.*`)
)

const dialInterval = 200 * time.Millisecond

// WaitForTCP dials addr until it accepts a connection, the timeout
// expires or ctx is done.
func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	if addr == "" {
		return ErrNoAddress
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	log.Debug("wait for tcp connection",
		log.String("addr", addr), log.Duration("timeout", timeout))

	var d net.Dialer
	ticker := time.NewTicker(dialInterval)
	defer ticker.Stop()
	for {
		dialCtx, dialCancel := context.WithTimeout(ctx, dialInterval)
		conn, err := d.DialContext(dialCtx, "tcp", addr)
		dialCancel()
		if err == nil {
			conn.Close()
			log.Debug("tcp connection successful",
				log.String("addr", addr), log.Duration("took", time.Since(start)))
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s could not be reached after %v: %w",
				addr, time.Since(start).Round(time.Millisecond), ctx.Err())
		case <-ticker.C:
		}
	}
}

// WaitForAll waits for all addresses concurrently.
func WaitForAll(ctx context.Context, timeout time.Duration, addrs ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, addr := range addrs {
		g.Go(func() error { return WaitForTCP(gctx, addr, timeout) })
	}
	return g.Wait()
}

// ExtractFromNatsURL returns host:port of a nats:// or tls:// URL.
// Only the first server of a comma separated list is used.
func ExtractFromNatsURL(url string) string {
	return hostPort(natsURL, url, "4222")
}

// ExtractFromDBURL returns host:port of a postgres URL.
func ExtractFromDBURL(url string) string {
	return hostPort(dbURL, url, "5432")
}

func hostPort(re *regexp.Regexp, url, defaultPort string) string {
	m := re.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	host := m[re.SubexpIndex("host")]
	if host == "" {
		return ""
	}
	port := m[re.SubexpIndex("port")]
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(host, port)
}
