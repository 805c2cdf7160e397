// Command miniredis-cli is a command-line client for miniredis-server.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/fredguile/miniredis/internal/client"
)

var (
	hostname = "127.0.0.1"
	port     = 6379
	timeout  = 3 * time.Second
)

var rootCmd = &cobra.Command{
	Use:   "miniredis-cli",
	Short: "Mini-redis command-line client",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&hostname, "hostname", hostname, "Server hostname")
	rootCmd.PersistentFlags().IntVar(&port, "port", port, "Server port")

	rootCmd.AddCommand(pingCmd, getCmd, setCmd, publishCmd, subscribeCmd)
}

func dial() (*client.Client, error) {
	return client.Dial(fmt.Sprintf("%s:%d", hostname, port), timeout)
}

var pingCmd = &cobra.Command{
	Use:   "ping [msg]",
	Short: "Ping the server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		var msg []byte
		if len(args) == 1 {
			msg = []byte(args[0])
		}

		value, err := c.Ping(context.Background(), msg)
		if err != nil {
			return err
		}
		fmt.Printf("%q\n", value)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get key",
	Short: "Get the value of a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		value, ok, err := c.Get(context.Background(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("(nil)")
			return nil
		}
		fmt.Printf("%q\n", value)
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set key value [expires_ms]",
	Short: "Set the value of a key, with an optional expiration in milliseconds",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		var ttl *time.Duration
		if len(args) == 3 {
			ms, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid expires: %w", err)
			}
			d := time.Duration(ms) * time.Millisecond
			ttl = &d
		}

		if err := c.Set(context.Background(), args[0], []byte(args[1]), ttl); err != nil {
			return err
		}
		fmt.Println("OK")
		return nil
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish channel message",
	Short: "Publish a message to a channel",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		if _, err := c.Publish(context.Background(), args[0], []byte(args[1])); err != nil {
			return err
		}
		fmt.Println("Publish OK")
		return nil
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe channel [channel...]",
	Short: "Subscribe to one or more channels and print messages as they arrive",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		ctx := context.Background()
		sub, err := c.Subscribe(ctx, args)
		if err != nil {
			return err
		}

		for {
			msg, err := sub.NextMessage(ctx)
			if err != nil {
				return err
			}
			if msg == nil {
				return nil
			}
			fmt.Printf("got message from the channel: %s; message = %q\n", msg.Channel, msg.Content)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
