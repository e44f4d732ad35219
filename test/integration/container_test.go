//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	defaultPostgresImage = "postgres:16-alpine"
	containerUser        = "frontdesk"
	containerPassword    = "frontdesk"
	containerDatabase    = "frontdesk"
	readyTimeout         = 30 * time.Second
)

// pgContainer is a throwaway postgres started through the docker CLI.
type pgContainer struct {
	id      string
	connStr string
}

func (c *pgContainer) stop() {
	if c.id != "" {
		_ = exec.Command("docker", "rm", "-f", c.id).Run()
	}
}

// startPostgresContainer runs TEST_POSTGRES_IMAGE (postgres:16-alpine by
// default) on a free host port and waits until it answers queries.
func startPostgresContainer(ctx context.Context) (string, func(), error) {
	port, err := freePort()
	if err != nil {
		return "", nil, fmt.Errorf("find free port: %w", err)
	}
	image := os.Getenv("TEST_POSTGRES_IMAGE")
	if image == "" {
		image = defaultPostgresImage
	}

	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"--name", fmt.Sprintf("frontdesk-it-%d", port),
		"-p", fmt.Sprintf("127.0.0.1:%d:5432", port),
		"-e", "POSTGRES_USER="+containerUser,
		"-e", "POSTGRES_PASSWORD="+containerPassword,
		"-e", "POSTGRES_DB="+containerDatabase,
		image,
	).CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("docker run %s: %w: %s", image, err, strings.TrimSpace(string(out)))
	}

	c := &pgContainer{
		id: strings.TrimSpace(string(out)),
		connStr: fmt.Sprintf("postgres://%s:%s@127.0.0.1:%d/%s?sslmode=disable",
			containerUser, containerPassword, port, containerDatabase),
	}
	if err := c.awaitReady(ctx); err != nil {
		c.stop()
		return "", nil, err
	}
	return c.connStr, c.stop, nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// awaitReady polls with a single connection; the image restarts postgres
// once during init, so the first successful ping can be premature and a
// query is required.
func (c *pgContainer) awaitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()

	var lastErr error
	for {
		if lastErr = c.ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %s: %w", readyTimeout, errors.Join(ctx.Err(), lastErr))
		case <-tick.C:
		}
	}
}

func (c *pgContainer) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	conn, err := pgx.Connect(ctx, c.connStr)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	var one int
	return conn.QueryRow(ctx, "SELECT 1").Scan(&one)
}
