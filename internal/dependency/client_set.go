package dependency

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	consulapi "github.com/hashicorp/consul/api"
	rootcerts "github.com/hashicorp/go-rootcerts"
	vaultapi "github.com/hashicorp/vault/api"
	_ "github.com/lib/pq"
	"github.com/shepherd-chms/pagecat/dep"
)

var _ dep.Clients = (*ClientSet)(nil)

// ClientSet is a collection of clients that the content providers use to
// communicate with Postgres, Consul or Vault.
type ClientSet struct {
	sync.RWMutex

	postgres *sql.DB
	vault    *vaultClient
	consul   *consulClient
}

// consulClient is a wrapper around a real Consul API client.
type consulClient struct {
	client     *consulapi.Client
	httpClient *http.Client
}

// vaultClient is a wrapper around a real Vault API client.
type vaultClient struct {
	client     *vaultapi.Client
	httpClient *http.Client
}

// CreateClientInput is used as input to CreateConsulClient and
// CreateVaultClient.
type CreateClientInput struct {
	Address   string
	Namespace string
	Token     string
	// UnwrapToken treats Token as a Vault response-wrapping token.
	UnwrapToken bool

	TLS TLSInput

	// DialTimeout and TLSHandshakeTimeout bound connection setup; zero
	// means no limit.
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration

	// optional, principally for testing
	HttpClient *http.Client
}

// TLSInput configures HTTPS to Consul or Vault.
type TLSInput struct {
	Enabled bool
	// Verify checks the server certificate chain and host name.
	Verify bool
	// Cert and Key are the client certificate; a Cert alone may hold both.
	Cert       string
	Key        string
	CACert     string
	CAPath     string
	ServerName string
}

// CreatePostgresInput is used as input to CreatePostgresClient.
type CreatePostgresInput struct {
	// URL is a full connection URL and takes precedence over the fields
	// below, except Password which replaces the URL's password when set.
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Pool limits follow database/sql: zero MaxOpenConns and ConnMaxLifetime
	// mean no limit, zero MaxIdleConns keeps no idle connections.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// optional, principally for testing
	DB *sql.DB
}

// DSN returns the lib/pq connection URL for the input. The Prisma "schema"
// parameter is dropped from URLs as lib/pq would send it to the server.
func (i *CreatePostgresInput) DSN() (string, error) {
	if i.URL != "" {
		u, err := url.Parse(i.URL)
		if err != nil {
			return "", fmt.Errorf("client set: postgres: invalid url: %s", err)
		}
		q := u.Query()
		q.Del("schema")
		u.RawQuery = q.Encode()
		if i.Password != "" && u.User != nil {
			u.User = url.UserPassword(u.User.Username(), i.Password)
		}
		return u.String(), nil
	}

	sslMode := i.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(i.User, i.Password),
		Host:     net.JoinHostPort(i.Host, fmt.Sprint(i.Port)),
		Path:     "/" + i.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String(), nil
}

// NewClientSet creates a new client set that is ready to accept clients.
func NewClientSet() *ClientSet {
	return &ClientSet{}
}

// CreatePostgresClient opens the Postgres connection pool. The connection is
// established lazily by the first query.
func (c *ClientSet) CreatePostgresClient(i *CreatePostgresInput) error {
	db := i.DB
	if db == nil {
		dsn, err := i.DSN()
		if err != nil {
			return err
		}
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return fmt.Errorf("client set: postgres: %s", err)
		}
		db.SetMaxOpenConns(i.MaxOpenConns)
		db.SetMaxIdleConns(i.MaxIdleConns)
		db.SetConnMaxLifetime(i.ConnMaxLifetime)
	}

	c.Lock()
	c.postgres = db
	c.Unlock()

	return nil
}

// CreateConsulClient creates the Consul client and waits for the cluster to
// report a leader, for at most a minute or until ctx is done.
func (c *ClientSet) CreateConsulClient(ctx context.Context, i *CreateClientInput) error {
	hc, err := httpClient(i)
	if err != nil {
		return err
	}

	conf := consulapi.DefaultConfig()
	conf.HttpClient = hc
	if i.Address != "" {
		conf.Address = i.Address
	}
	if i.Namespace != "" {
		conf.Namespace = i.Namespace
	}
	if i.Token != "" {
		conf.Token = i.Token
	}
	if i.TLS.Enabled {
		conf.Scheme = "https"
	}

	client, err := consulapi.NewClient(conf)
	if err != nil {
		return fmt.Errorf("client set: consul: %s", err)
	}
	if err := hasLeader(ctx, client, time.Minute); err != nil {
		return err
	}

	c.Lock()
	c.consul = &consulClient{client: client, httpClient: hc}
	c.Unlock()
	return nil
}

// hasLeader polls the leader status with a doubling delay until a leader is
// reported, the next delay would exceed maxRetryWait or ctx is done.
// Permanent network errors and error responses from Consul, such as an ACL
// denial, end the wait at once.
func hasLeader(ctx context.Context, client *consulapi.Client, maxRetryWait time.Duration) error {
	opts := (&consulapi.QueryOptions{}).WithContext(ctx)
	for wait := time.Second; ; {
		leader, err := client.Status().LeaderWithQueryOptions(opts)
		if ctx.Err() != nil {
			return fmt.Errorf("client set: consul leader: %s", ctx.Err())
		}
		if status, ok := DecodeConsulStatusError(err); ok {
			return fmt.Errorf("client set: consul leader: status %d: %s", status.Code, status.Body)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && !netErr.Temporary() {
			return fmt.Errorf("client set: consul: %s", err)
		}
		if leader != "" {
			return nil
		}

		wait *= 2
		if wait > maxRetryWait {
			return fmt.Errorf("client set: no consul leader detected")
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("client set: consul leader: %s", ctx.Err())
		case <-timer.C:
		}
	}
}

// CreateVaultClient creates the Vault client. A wrapped token is exchanged
// for the client token it wraps.
func (c *ClientSet) CreateVaultClient(i *CreateClientInput) error {
	hc, err := httpClient(i)
	if err != nil {
		return err
	}

	conf := vaultapi.DefaultConfig()
	conf.HttpClient = hc
	if i.Address != "" {
		conf.Address = i.Address
	}

	client, err := vaultapi.NewClient(conf)
	if err != nil {
		return fmt.Errorf("client set: vault: %s", err)
	}
	if i.Namespace != "" {
		client.SetNamespace(i.Namespace)
	}
	if i.Token != "" {
		client.SetToken(i.Token)
	}

	if i.UnwrapToken {
		token, err := unwrapToken(client, i.Token)
		if err != nil {
			return fmt.Errorf("client set: vault unwrap: %s", err)
		}
		client.SetToken(token)
	}

	c.Lock()
	c.vault = &vaultClient{client: client, httpClient: hc}
	c.Unlock()
	return nil
}

func unwrapToken(client *vaultapi.Client, wrapped string) (string, error) {
	secret, err := client.Logical().Unwrap(wrapped)
	switch {
	case err != nil:
		return "", err
	case secret == nil:
		return "", fmt.Errorf("no secret")
	case secret.Auth == nil:
		return "", fmt.Errorf("no secret auth")
	case secret.Auth.ClientToken == "":
		return "", fmt.Errorf("no token returned")
	}
	return secret.Auth.ClientToken, nil
}

// Postgres returns the Postgres connection pool for this set.
func (c *ClientSet) Postgres() *sql.DB {
	if c == nil {
		return nil
	}
	c.RLock()
	defer c.RUnlock()
	return c.postgres
}

// Consul returns the Consul client for this set.
func (c *ClientSet) Consul() *consulapi.Client {
	if c == nil {
		return nil
	}
	c.RLock()
	defer c.RUnlock()
	if c.consul == nil {
		return nil
	}
	return c.consul.client
}

// Vault returns the Vault client for this set.
func (c *ClientSet) Vault() *vaultapi.Client {
	if c == nil {
		return nil
	}
	c.RLock()
	defer c.RUnlock()
	if c.vault == nil {
		return nil
	}
	return c.vault.client
}

// Stop closes the Postgres pool and the idle HTTP connections of the other
// clients. The set can be reused afterwards.
func (c *ClientSet) Stop() {
	if c == nil {
		return
	}
	c.Lock()
	defer c.Unlock()

	if c.postgres != nil {
		c.postgres.Close()
		c.postgres = nil
	}
	if c.consul != nil {
		c.consul.httpClient.CloseIdleConnections()
	}
	if c.vault != nil {
		c.vault.httpClient.CloseIdleConnections()
	}
}

// httpClient returns the test client when one is given.
func httpClient(i *CreateClientInput) (*http.Client, error) {
	if i.HttpClient != nil {
		return i.HttpClient, nil
	}
	transport, err := newTransport(i)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport}, nil
}

func newTransport(i *CreateClientInput) (*http.Transport, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: i.DialTimeout}).DialContext,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: i.TLSHandshakeTimeout,
	}
	if !i.TLS.Enabled {
		return transport, nil
	}

	tlsConfig, err := newTLSConfig(i.TLS)
	if err != nil {
		return nil, fmt.Errorf("client set: ssl: %s", err)
	}
	transport.TLSClientConfig = tlsConfig
	return transport, nil
}

func newTLSConfig(i TLSInput) (*tls.Config, error) {
	conf := &tls.Config{
		ServerName:         i.ServerName,
		InsecureSkipVerify: !i.Verify,
	}

	if i.Cert != "" {
		key := i.Key
		if key == "" {
			key = i.Cert
		}
		cert, err := tls.LoadX509KeyPair(i.Cert, key)
		if err != nil {
			return nil, err
		}
		conf.Certificates = []tls.Certificate{cert}
	}

	if i.CACert != "" || i.CAPath != "" {
		err := rootcerts.ConfigureTLS(conf, &rootcerts.Config{
			CAFile: i.CACert,
			CAPath: i.CAPath,
		})
		if err != nil {
			return nil, err
		}
	}
	return conf, nil
}
