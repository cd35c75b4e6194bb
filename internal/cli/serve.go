package cli

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/digitalmethodsinitiative/itunes-app-scraper/internal/api"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/observability"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scraper as a JSON HTTP API",
		Long: `Serve the scraper as a JSON HTTP API.

Endpoints:
  GET /search?term=&country=&lang=&count=&page=
  GET /collections?collection=&category=&count=&country=
  GET /developers/{id}/apps
  GET /apps?ids=1,2,3
  GET /apps/{id}?ratings=&force=&flatten=
  GET /apps/{id}/similar
  GET /apps/{id}/ratings?countries=
  GET /entries/{countries|collections|categories}
  GET /healthz
  GET /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.cfg.Server.Addr
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			hooks := observability.NewPrometheusHooks(reg)
			observability.SetHTTPHooks(hooks)
			observability.SetOperationHooks(hooks)
			defer observability.Reset()

			client, done, err := c.newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			err = api.New(client, c.Logger, reg).ListenAndServe(cmd.Context(), addr)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")

	return cmd
}
