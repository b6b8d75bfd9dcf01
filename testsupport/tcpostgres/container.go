// Package tcpostgres starts the postgres instance used by the rider
// directory tests.
package tcpostgres

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const pgPort nat.Port = "5432/tcp"

// Container is a running postgres with a single database.
type Container struct {
	testcontainers.Container
	user     string
	password string
	database string
}

type settings struct {
	req      testcontainers.ContainerRequest
	timeout  time.Duration
	user     string
	password string
	database string
}

type Option func(*settings)

func WithImage(image string) Option {
	return func(s *settings) { s.req.Image = image }
}

// WithContainerName names the container. Named containers are reused
// across test packages.
func WithContainerName(name string) Option {
	return func(s *settings) { s.req.Name = name }
}

func WithCredentials(user, password, database string) Option {
	return func(s *settings) {
		s.user = user
		s.password = password
		s.database = database
	}
}

func WithStartupTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// Start runs the container and waits until postgres accepts
// connections. The server runs with fsync disabled.
func Start(ctx context.Context, opts ...Option) (*Container, error) {
	s := settings{
		req: testcontainers.ContainerRequest{
			Image:        "postgres:17",
			ExposedPorts: []string{string(pgPort)},
			Cmd:          []string{"postgres", "-c", "fsync=off"},
		},
		timeout:  30 * time.Second,
		user:     "postgres",
		password: "password",
		database: "rte",
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.req.Env = map[string]string{
		"POSTGRES_USER":     s.user,
		"POSTGRES_PASSWORD": s.password,
		"POSTGRES_DB":       s.database,
	}
	// postgres restarts once after the init scripts ran
	s.req.WaitingFor = wait.ForAll(
		wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2),
		wait.ForListeningPort(pgPort),
	).WithDeadline(s.timeout)

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: s.req,
		Started:          true,
		Reuse:            s.req.Name != "",
	})
	if err != nil {
		return nil, err
	}
	return &Container{
		Container: c,
		user:      s.user,
		password:  s.password,
		database:  s.database,
	}, nil
}

// URL returns the connection URL of the database as seen from the host.
func (c *Container) URL(ctx context.Context) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx, pgPort)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s",
		c.user, c.password, host, port.Port(), c.database), nil
}
