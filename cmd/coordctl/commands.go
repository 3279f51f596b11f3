package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/maxpoletaev/shardcoord/api/model"
)

type rootFlags struct {
	addr    string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "coordctl",
		Short:         "Inspect and change the cluster state through the admin API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.addr, "addr", "http://127.0.0.1:8000", "admin API address")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", 60*time.Second, "request timeout")

	root.AddCommand(
		newStatusCmd(flags),
		newStateCmd(flags),
		newNodesCmd(flags),
		newTasksCmd(flags),
		newSearchShardsCmd(flags),
		newCreateIndexCmd(flags),
		newDeleteIndexCmd(flags),
	)

	return root
}

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state version and the cluster members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(flags.addr, flags.timeout)

			var (
				state *model.GetStateResponse
				nodes *model.GetNodesResponse
			)

			g, ctx := errgroup.WithContext(cmd.Context())

			g.Go(func() (err error) {
				state, err = c.State(ctx)
				return err
			})

			g.Go(func() (err error) {
				nodes, err = c.Nodes(ctx)
				return err
			})

			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cluster: %s\nversion: %d\nindices: %d\n\n", state.ClusterUUID, state.Version, len(state.Indices))
			printNodes(out, nodes.Nodes)

			return nil
		},
	}
}

func newStateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the indices and their routing tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := newClient(flags.addr, flags.timeout).State(cmd.Context())
			if err != nil {
				return err
			}

			printState(cmd.OutOrStdout(), state)

			return nil
		},
	}
}

func newNodesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "List the cluster members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes, err := newClient(flags.addr, flags.timeout).Nodes(cmd.Context())
			if err != nil {
				return err
			}

			printNodes(cmd.OutOrStdout(), nodes.Nodes)

			return nil
		},
	}
}

func newTasksCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the tasks waiting in the queue of the publishing node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient(flags.addr, flags.timeout).Tasks(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PRIORITY\tSOURCE\tWAITING")

			for _, task := range resp.Tasks {
				fmt.Fprintf(w, "%s\t%s\t%s\n", task.Priority, task.Source, task.TimeInQueue)
			}

			return w.Flush()
		},
	}
}

func newSearchShardsCmd(flags *rootFlags) *cobra.Command {
	var params searchParams

	cmd := &cobra.Command{
		Use:   "search-shards",
		Short: "Show which shard copies a search would be sent to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient(flags.addr, flags.timeout).SearchShards(cmd.Context(), params)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version: %d, groups: %d\n\n", resp.Version, resp.Size)

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SHARD\tTARGETS")

			for _, group := range resp.Groups {
				targets := make([]string, 0, len(group.Targets))
				for _, t := range group.Targets {
					targets = append(targets, t.NodeID)
				}

				fmt.Fprintf(w, "[%s][%d]\t%s\n", group.Index, group.Shard, strings.Join(targets, ","))
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringSliceVar(&params.Indices, "index", nil, "indices to search")
	cmd.Flags().StringVar(&params.Preference, "preference", "", "routing preference: _local, _primary or any string")
	cmd.Flags().StringVar(&params.ClusterAlias, "cluster-alias", "", "alias of the cluster the indices belong to")
	_ = cmd.MarkFlagRequired("index")

	return cmd
}

func newCreateIndexCmd(flags *rootFlags) *cobra.Command {
	var params model.CreateIndexParams

	cmd := &cobra.Command{
		Use:   "create-index NAME",
		Short: "Create an index and allocate its shards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient(flags.addr, flags.timeout).CreateIndex(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}

			printTaskResponse(cmd.OutOrStdout(), resp)

			return nil
		},
	}

	cmd.Flags().IntVar(&params.Shards, "shards", 1, "number of primary shards")
	cmd.Flags().IntVar(&params.Replicas, "replicas", 1, "number of replicas per shard")
	cmd.Flags().StringToStringVar(&params.Settings, "setting", nil, "index settings as key=value")

	return cmd
}

func newDeleteIndexCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-index NAME",
		Short: "Delete an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient(flags.addr, flags.timeout).DeleteIndex(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printTaskResponse(cmd.OutOrStdout(), resp)

			return nil
		},
	}
}

func printNodes(out io.Writer, nodes []model.Node) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tADDR\tSTATUS")

	for _, n := range nodes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.ID, n.Name, n.Addr, n.Status)
	}

	w.Flush()
}

func printState(out io.Writer, state *model.GetStateResponse) {
	fmt.Fprintf(out, "cluster: %s, version: %d\n\n", state.ClusterUUID, state.Version)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tSHARD\tPRIMARY\tNODE\tSTATE")

	for _, index := range state.Indices {
		for _, shard := range index.Routing {
			for _, c := range shard.Copies {
				node := c.NodeID
				if node == "" {
					node = "-"
				}

				fmt.Fprintf(w, "%s\t%d\t%t\t%s\t%s\n", index.Name, shard.Shard, c.Primary, node, c.State)
			}
		}
	}

	w.Flush()
}

func printTaskResponse(out io.Writer, resp *model.TaskResponse) {
	fmt.Fprintf(out, "acknowledged: %t, version: %d\n", resp.Acknowledged, resp.Version)

	printMap := func(kind string, m map[string]string) {
		ids := make([]string, 0, len(m))
		for id := range m {
			ids = append(ids, id)
		}

		sort.Strings(ids)

		for _, id := range ids {
			fmt.Fprintf(out, "%s %s: %s\n", kind, id, m[id])
		}
	}

	printMap("rejected by", resp.Nacked)
	printMap("no response from", resp.Failed)
}
