// Command memscope is a one-shot monitor for pooled allocator instances. It
// attaches to a named heap region or a keyed shared-memory partition, prints a
// usage report as JSON, and exits without mutating allocator state.
//
// Usage:
//
//	memscope [-config file.yaml] heap <name>
//	memscope [-config file.yaml] wm <key> <size> <partition>
//	memscope [-config file.yaml] create <name> <heap-bytes> <small-bytes> <large-bytes>
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/memscope/memscope/heap"
	"github.com/memscope/memscope/internal/logutil"
	"github.com/memscope/memscope/partition"
	"github.com/memscope/memscope/report"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Usage = usage
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logutil.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if err := run(cfg, logger, args[0], args[1:]); err != nil {
		logger.Error("query failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg Config, logger *zap.Logger, command string, args []string) error {
	switch command {
	case "heap":
		if len(args) != 1 {
			return fmt.Errorf("usage: memscope heap <name>")
		}
		return dumpHeap(cfg, logger, args[0])
	case "wm":
		if len(args) != 3 {
			return fmt.Errorf("usage: memscope wm <key> <size> <partition>")
		}
		key, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("key must be an integer, not %q", args[0])
		}
		size, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("size must be an integer, not %q", args[1])
		}
		return dumpPartition(cfg, logger, key, size, args[2])
	case "create":
		if len(args) != 4 {
			return fmt.Errorf("usage: memscope create <name> <heap-bytes> <small-bytes> <large-bytes>")
		}
		sizes := make([]int, 3)
		for i, arg := range args[1:] {
			n, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("%q is not a byte count", arg)
			}
			sizes[i] = n
		}
		return createHeap(cfg, logger, args[0], sizes[0], sizes[1], sizes[2])
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func dumpHeap(cfg Config, logger *zap.Logger, name string) error {
	registry, err := heap.NewRegistry(heap.Options{
		Directory: cfg.Directory,
		Geometry:  cfg.Geometry.toGeometry(),
	})
	if err != nil {
		return err
	}
	logger.Debug("dumping heap usage", zap.String("name", name))

	rep, err := report.Service{Heaps: registry}.DumpHeap(name)
	if err != nil {
		return err
	}
	fmt.Println(rep.BuildStatsString())
	return nil
}

func dumpPartition(cfg Config, logger *zap.Logger, key int, size int64, name string) error {
	backing := partition.BackingAuto
	if cfg.Backing == "file" {
		backing = partition.BackingFile
	}
	manager, err := partition.NewManager(partition.Options{
		Directory: cfg.Directory,
		Geometry:  cfg.Geometry.toGeometry(),
		Backing:   backing,
	})
	if err != nil {
		return err
	}
	logger.Debug("dumping partition usage", zap.Int("key", key), zap.String("partition", name))

	rep, err := report.Service{Partitions: manager}.DumpPartition(key, size, name)
	if err != nil {
		return err
	}
	fmt.Println(rep.BuildStatsString())
	return nil
}

func createHeap(cfg Config, logger *zap.Logger, name string, heapBytes, smallBytes, largeBytes int) error {
	registry, err := heap.NewRegistry(heap.Options{
		Directory: cfg.Directory,
		Geometry:  cfg.Geometry.toGeometry(),
	})
	if err != nil {
		return err
	}
	err = registry.Create(name, heap.CreateConfig{
		HeapBytes:      heapBytes,
		SmallPoolBytes: smallBytes,
		LargePoolBytes: largeBytes,
	})
	if err != nil {
		return err
	}
	logger.Info("created heap region",
		zap.String("name", name),
		zap.Int("heapBytes", heapBytes),
		zap.Int("smallPoolBytes", smallBytes),
		zap.Int("largePoolBytes", largeBytes))
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `memscope - pooled allocator usage monitor

  memscope [-config file.yaml] heap <name>
      Dump usage of the named heap region.

  memscope [-config file.yaml] wm <key> <size> <partition>
      Dump usage of the partition in the shared segment with the given key,
      creating the segment with the given size if it does not exist.

  memscope [-config file.yaml] create <name> <heap-bytes> <small-bytes> <large-bytes>
      Create and format a heap region for testing and local development.
`)
}
