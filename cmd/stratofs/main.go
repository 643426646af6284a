// Command stratofs is a small CLI over the storage dispatch layer: one
// uniform set of file commands addressing any configured backend by URL.
//
// Usage:
//
//	stratofs [flags] <command> [args]
//
// Commands:
//
//	ls <url>            list entries under a URL
//	cat <url>           print an object to stdout
//	put <url>           store stdin as an object
//	stat <url>          print object metadata
//	mkdir <url>         create a directory
//	rm <url>            remove an object or directory
//	cp <src> <dst>      copy an object, possibly across backends
//	mv <src> <dst>      move an object, possibly across backends
//	schemes             list registered schemes
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stratofs/stratofs/internal/logger"
	"github.com/stratofs/stratofs/pkg/config"
	"github.com/stratofs/stratofs/pkg/filesystem"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: stratofs [flags] <command> [args]

Commands:
  ls <url>         list entries under a URL
  cat <url>        print an object to stdout
  put <url>        store stdin as an object
  stat <url>       print object metadata
  mkdir <url>      create a directory
  rm <url>         remove an object or directory
  cp <src> <dst>   copy an object, possibly across backends
  mv <src> <dst>   move an object, possibly across backends
  schemes          list registered schemes

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	recursive := flag.Bool("r", false, "Recurse (ls lists subtrees, rm removes directories)")
	strict := flag.Bool("strict", false, "rm fails when the target does not exist")
	timeout := flag.Duration("timeout", 5*time.Minute, "Overall operation timeout")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stratofs: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	fs, err := config.NewFileSystem(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stratofs: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := fs.Close(context.Background()); err != nil {
			logger.Warn("close: %v", err)
		}
	}()

	if err := dispatch(ctx, fs, args, *recursive, *strict); err != nil {
		fmt.Fprintf(os.Stderr, "stratofs: %s: %v\n", args[0], err)
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, fs *filesystem.FileSystem, args []string, recursive, strict bool) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "ls":
		return cmdList(ctx, fs, rest, recursive)
	case "cat":
		return cmdCat(ctx, fs, rest)
	case "put":
		return cmdPut(ctx, fs, rest)
	case "stat":
		return cmdStat(ctx, fs, rest)
	case "mkdir":
		return oneURL(rest, func(url string) error { return fs.Mkdir(ctx, url) })
	case "rm":
		return oneURL(rest, func(url string) error {
			return fs.Remove(ctx, url, filesystem.RemoveOptions{Strict: strict, Recursive: recursive})
		})
	case "cp":
		return twoURLs(rest, func(src, dst string) error { return fs.Copy(ctx, src, dst) })
	case "mv":
		return twoURLs(rest, func(src, dst string) error { return fs.Rename(ctx, src, dst) })
	case "schemes":
		for _, s := range fs.Schemes() {
			fmt.Println(s)
		}
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func oneURL(args []string, run func(string) error) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one URL, got %d arguments", len(args))
	}
	return run(args[0])
}

func twoURLs(args []string, run func(string, string) error) error {
	if len(args) != 2 {
		return fmt.Errorf("expected source and destination URLs, got %d arguments", len(args))
	}
	return run(args[0], args[1])
}

func cmdList(ctx context.Context, fs *filesystem.FileSystem, args []string, recursive bool) error {
	return oneURL(args, func(url string) error {
		entries, err := fs.List(ctx, url, filesystem.ListOptions{Recursive: recursive})
		if err != nil {
			return err
		}
		for _, e := range entries {
			kind := "-"
			if e.IsDir {
				kind = "d"
			}
			modified := ""
			if !e.Modified.IsZero() {
				modified = e.Modified.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s %12d  %-19s  %s\n", kind, e.Size, modified, e.Path)
		}
		return nil
	})
}

func cmdCat(ctx context.Context, fs *filesystem.FileSystem, args []string) error {
	return oneURL(args, func(url string) error {
		data, err := fs.ReadFile(ctx, url)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	})
}

func cmdPut(ctx context.Context, fs *filesystem.FileSystem, args []string) error {
	return oneURL(args, func(url string) error {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		return fs.WriteFile(ctx, url, data)
	})
}

func cmdStat(ctx context.Context, fs *filesystem.FileSystem, args []string) error {
	return oneURL(args, func(url string) error {
		info, err := fs.Info(ctx, url)
		if err != nil {
			return err
		}
		fmt.Printf("Path:     %s\n", info.Path)
		fmt.Printf("Key:      %s\n", info.Key)
		fmt.Printf("Size:     %d\n", info.Size)
		fmt.Printf("Dir:      %v\n", info.IsDir)
		if !info.Modified.IsZero() {
			fmt.Printf("Modified: %s\n", info.Modified.Format(time.RFC3339))
		}
		if info.ETag != "" {
			fmt.Printf("ETag:     %s\n", info.ETag)
		}
		return nil
	})
}
