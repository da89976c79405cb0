// checkctl seeds and inspects the check store used by uptimed.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/checkfile"
	"github.com/hamed0406/uptimeworker/internal/config"
	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/repo"
	"github.com/hamed0406/uptimeworker/internal/repo/filestore"
	"github.com/hamed0406/uptimeworker/internal/repo/postgres"
)

type store interface {
	repo.RecordStore
	repo.Writer
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: checkctl [-json] list | import <file.yaml>")
	os.Exit(2)
}

func main() {
	_ = godotenv.Load()
	asJSON := flag.Bool("json", false, "print list output as JSON")
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fail(err)
	}
	ctx := context.Background()
	st, closeFn, err := open(ctx, cfg)
	if err != nil {
		fail(err)
	}
	defer closeFn()

	switch flag.Arg(0) {
	case "import":
		if flag.NArg() != 2 {
			usage()
		}
		err = runImport(ctx, st, flag.Arg(1))
	case "list":
		err = runList(ctx, st, *asJSON)
	default:
		usage()
	}
	if err != nil {
		closeFn()
		fail(err)
	}
}

func open(ctx context.Context, cfg config.Config) (store, func(), error) {
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, zap.NewNop())
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
	fs, err := filestore.New(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}

func runImport(ctx context.Context, st store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	recs, err := checkfile.Load(f)
	if err != nil {
		return err
	}
	n, err := checkfile.Import(ctx, st, recs)
	fmt.Printf("imported %d of %d checks\n", n, len(recs))
	for _, e := range multierr.Errors(err) {
		fmt.Fprintln(os.Stderr, "  ", e)
	}
	return err
}

func runList(ctx context.Context, st store, asJSON bool) error {
	ids, err := st.List(ctx, repo.KindChecks)
	if err != nil {
		return err
	}
	if asJSON {
		recs := make([]repo.Record, 0, len(ids))
		for _, id := range ids {
			rec, err := st.Read(ctx, repo.KindChecks, id)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMETHOD\tURL\tSTATE\tLAST CHECKED")
	for _, id := range ids {
		rec, err := st.Read(ctx, repo.KindChecks, id)
		if err != nil {
			return err
		}
		c, err := domain.ValidateRecord(rec)
		if err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\tinvalid\t-\n", id)
			continue
		}
		last := "-"
		if c.LastChecked != nil {
			last = c.LastChecked.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s://%s\t%s\t%s\n", c.ID, c.Method, c.Protocol, c.URL, c.State, last)
	}
	return tw.Flush()
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "checkctl:", err)
	os.Exit(1)
}
