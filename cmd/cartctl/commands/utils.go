package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/artfolio/cartstore/pkg/cart"
	"github.com/artfolio/cartstore/pkg/catalog"
	"github.com/artfolio/cartstore/pkg/db"
	"github.com/artfolio/cartstore/pkg/errors"
	"github.com/artfolio/cartstore/pkg/security"
)

// openStore builds the connection and store from config. The database is
// opened lazily on first use.
func openStore() (*db.Conn, *cart.Store, error) {
	conn := db.NewConn(cfg.DBPath)
	opts := []cart.Option{
		cart.WithValidator(security.NewValidator(cfg.MaxLineQuantity, cfg.MaxTextLength)),
	}

	if cfg.CatalogURL != "" {
		client, err := catalog.NewClient(cfg.CatalogURL, cfg.CatalogTimeout, catalog.WithToken(cfg.CatalogToken))
		if err != nil {
			return nil, nil, errors.Wrap(err, "catalog client failed")
		}
		opts = append(opts, cart.WithFetcher(client))
	}

	return conn, cart.New(conn, opts...), nil
}

// ensureDirectories creates the FSM state directory.
func ensureDirectories(fsmDBPath string) error {
	if fsmDBPath == "" {
		return nil
	}
	if err := os.MkdirAll(fsmDBPath, 0755); err != nil {
		return errors.Wrap(err, "failed to create FSM directory")
	}
	return nil
}

// readProduct accepts inline JSON or @path to a JSON file.
func readProduct(arg string) ([]byte, error) {
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read product file")
		}
		return raw, nil
	}
	if strings.TrimSpace(arg) == "" {
		return nil, fmt.Errorf("--product is required")
	}
	return []byte(arg), nil
}

func parseLineID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid line id %q", arg)
	}
	return id, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
