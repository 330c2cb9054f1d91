package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/fetchx/internal/constants"
	"github.com/fivetwenty-io/fetchx/pkg/fetchx"
	"github.com/fivetwenty-io/fetchx/pkg/fetchxclient"
	"github.com/fivetwenty-io/fetchx/pkg/repository"
	"github.com/fivetwenty-io/fetchx/pkg/store"
)

// listFlags holds the flags of the list command.
type listFlags struct {
	limit        int
	page         int
	all          bool
	limitField   string
	skipField    string
	resultsField string
	totalField   string
	filters      []string
	cacheTTL     time.Duration
}

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "get PATH [ID]",
		Short: "Read a resource or collection",
		Long:  "Read PATH, or the entity ID under PATH, and print the JSON response",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(args, params)
			if err != nil {
				return err
			}

			return withRepository(cmd.Context(), args[0], func(repo *repository.Repository) error {
				resp, err := repo.Read(cmd.Context(), query)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", repo.Path(), err)
				}

				return render(cmd.OutOrStdout(), resp.Data)
			})
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "q", nil, "query parameter KEY=VALUE (repeatable)")

	return cmd
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	flags := listFlags{}

	cmd := &cobra.Command{
		Use:   "list PATH",
		Short: "List a paginated collection",
		Long: `Fetch a page of the collection at PATH.

Object responses are read from --results-field and --total-field; array responses
are used as they are. --all keeps loading pages until the collection is exhausted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListCommand(cmd, args[0], flags)
		},
	}

	cmd.Flags().IntVarP(&flags.limit, "limit", "l", 0, "page size (0 disables pagination)")
	cmd.Flags().IntVar(&flags.page, "page", constants.FirstPage, "page to fetch")
	cmd.Flags().BoolVar(&flags.all, "all", false, "fetch all pages")
	cmd.Flags().StringVar(&flags.limitField, "limit-field", constants.DefaultLimitField, "query parameter carrying the page size")
	cmd.Flags().StringVar(&flags.skipField, "skip-field", constants.DefaultSkipField, "query parameter carrying the offset")
	cmd.Flags().StringVar(&flags.resultsField, "results-field", "", "field holding the items in object responses")
	cmd.Flags().StringVar(&flags.totalField, "total-field", "", "field holding the total count in object responses")
	cmd.Flags().StringArrayVarP(&flags.filters, "filter", "f", nil, "filter KEY=VALUE (repeatable)")
	cmd.Flags().DurationVar(&flags.cacheTTL, "cache-ttl", 0, "cache responses for this long (0 disables caching)")

	return cmd
}

func runListCommand(cmd *cobra.Command, path string, flags listFlags) error {
	filters, err := parseKeyValues(flags.filters)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	client, err := CreateClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	options := store.ListOptions{
		Limit:           flags.limit,
		LimitField:      flags.limitField,
		SkipField:       flags.skipField,
		ResultsField:    flags.resultsField,
		TotalCountField: flags.totalField,
		InfiniteScroll:  flags.all,
	}

	if flags.cacheTTL > 0 {
		options.CacheID = path
		options.CacheDuration = flags.cacheTTL
	}

	list, err := fetchxclient.NewList[any](client, path, options)
	if err != nil {
		return err
	}

	list.SetFilters(toParams(filters))
	list.SetPage(flags.page)

	if err := list.Fetch(ctx); err != nil {
		return fmt.Errorf("failed to list %s: %w", path, err)
	}

	for flags.all && list.HasMore() {
		if err := list.LoadMore(ctx); err != nil {
			return fmt.Errorf("failed to load page %d of %s: %w", list.Page(), path, err)
		}
	}

	out := cmd.OutOrStdout()

	if err := render(out, list.List()); err != nil {
		return err
	}

	if outputFormat() == constants.FormatTable && len(list.List()) > 0 {
		_, _ = fmt.Fprintf(out, "Showing %d of %d (page %d)\n", len(list.List()), list.TotalCount(), list.Page())
	}

	return nil
}

// NewCreateCommand creates the create command.
func NewCreateCommand() *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "create PATH",
		Short: "Create a resource",
		Long:  "POST the --data JSON object to PATH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readData(data, cmd.InOrStdin())
			if err != nil {
				return err
			}

			return withRepository(cmd.Context(), args[0], func(repo *repository.Repository) error {
				resp, err := repo.Create(cmd.Context(), body)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", repo.Path(), err)
				}

				return render(cmd.OutOrStdout(), resp.Data)
			})
		},
	}

	addDataFlag(cmd, &data)

	return cmd
}

// NewPatchCommand creates the patch command.
func NewPatchCommand() *cobra.Command {
	return newUpdateCommand("patch", "Partially update a resource", (*repository.Repository).Patch)
}

// NewPutCommand creates the put command.
func NewPutCommand() *cobra.Command {
	return newUpdateCommand("put", "Replace a resource", (*repository.Repository).Put)
}

type updateFunc func(repo *repository.Repository, ctx context.Context, id string, data any) (*fetchx.Response, error)

func newUpdateCommand(name, short string, update updateFunc) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   name + " PATH ID",
		Short: short,
		Long:  fmt.Sprintf("Send the --data JSON object to PATH/ID with %s", name),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readData(data, cmd.InOrStdin())
			if err != nil {
				return err
			}

			return withRepository(cmd.Context(), args[0], func(repo *repository.Repository) error {
				resp, err := update(repo, cmd.Context(), args[1], body)
				if err != nil {
					return fmt.Errorf("failed to %s %s/%s: %w", name, repo.Path(), args[1], err)
				}

				return render(cmd.OutOrStdout(), resp.Data)
			})
		},
	}

	addDataFlag(cmd, &data)

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete PATH ID",
		Short: "Delete a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd.Context(), args[0], func(repo *repository.Repository) error {
				if _, err := repo.Delete(cmd.Context(), args[1]); err != nil {
					return fmt.Errorf("failed to delete %s/%s: %w", repo.Path(), args[1], err)
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s/%s\n", repo.Path(), args[1])

				return nil
			})
		},
	}
}

func addDataFlag(cmd *cobra.Command, data *string) {
	cmd.Flags().StringVarP(data, "data", "d", "", "JSON object, @file or - for stdin")
}

func withRepository(ctx context.Context, path string, fn func(repo *repository.Repository) error) error {
	client, err := CreateClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	repo, err := client.Repository(path)
	if err != nil {
		return err
	}

	return fn(repo)
}

func readQuery(args, params []string) (repository.ReadQuery, error) {
	values, err := parseKeyValues(params)
	if err != nil {
		return repository.ReadQuery{}, err
	}

	query := toParams(values)

	if len(args) > 1 {
		return repository.ByIDAndParams(args[1], query), nil
	}

	return repository.ByParams(query), nil
}

// toParams orders keys so the encoded query and cache fingerprint are stable.
func toParams(values map[string][]string) fetchx.Params {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	var params fetchx.Params
	for _, key := range keys {
		for _, value := range values[key] {
			params = params.Add(key, value)
		}
	}

	return params
}
