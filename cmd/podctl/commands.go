package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/podlink/podfs/pkg/podfs"
)

func dispatch(ctx context.Context, c *podfs.Client, opts options, cmd string, args []string) error {
	switch cmd {
	case "ls":
		return cmdList(ctx, c, argOr(args, 0, "/"))
	case "tree":
		return cmdTree(ctx, c, argOr(args, 0, "/"))
	case "stat":
		if len(args) != 1 {
			return fmt.Errorf("usage: podctl stat <path>")
		}
		return cmdStat(ctx, c, args[0])
	case "cat":
		if len(args) != 1 {
			return fmt.Errorf("usage: podctl cat <path>")
		}
		return cmdCat(ctx, c, args[0])
	case "get":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: podctl get <remote> [local]")
		}
		return cmdGet(ctx, c, args[0], argOr(args, 1, ""))
	case "put":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: podctl put <local> [remote]")
		}
		return cmdPut(ctx, c, args[0], argOr(args, 1, ""))
	case "mkdir":
		if len(args) != 1 {
			return fmt.Errorf("usage: podctl mkdir <path>")
		}
		return c.Mkdir(ctx, podfs.ParsePath(args[0]))
	case "rm":
		if len(args) != 1 {
			return fmt.Errorf("usage: podctl rm <path>")
		}
		return c.Remove(ctx, podfs.ParsePath(args[0]))
	case "mv":
		if len(args) != 2 {
			return fmt.Errorf("usage: podctl mv <old> <new>")
		}
		return c.Rename(ctx, podfs.ParsePath(args[0]), podfs.ParsePath(args[1]))
	case "ln":
		if len(args) != 2 {
			return fmt.Errorf("usage: podctl [-s] ln <target> <link>")
		}
		return c.Link(ctx, podfs.ParsePath(args[0]), podfs.ParsePath(args[1]), opts.symbolic)
	case "df":
		return cmdDeviceInfo(ctx, c)
	case "hash":
		if len(args) != 1 {
			return fmt.Errorf("usage: podctl hash <path>")
		}
		return cmdHash(ctx, c, args[0])
	default:
		return fmt.Errorf("unknown command %q (run podctl without arguments for usage)", cmd)
	}
}

func argOr(args []string, i int, def string) string {
	if i < len(args) {
		return args[i]
	}
	return def
}

func cmdList(ctx context.Context, c *podfs.Client, path string) error {
	entries, err := c.List(ctx, podfs.ParsePath(path))
	if err != nil {
		return err
	}
	for _, e := range entries {
		printEntryLine(e, e.Name())
	}
	return nil
}

func cmdTree(ctx context.Context, c *podfs.Client, path string) error {
	root := podfs.ParsePath(path)
	depth := len(root.Parts())
	for e, err := range c.Walk(ctx, root) {
		if err != nil {
			return err
		}
		indent := len(e.Path.Parts()) - depth - 1
		printEntryLine(e, fmt.Sprintf("%*s%s", 2*indent, "", e.Name()))
	}
	return nil
}

func printEntryLine(e podfs.Entry, name string) {
	if e.Kind == podfs.KindSymlink {
		name += " -> " + e.LinkTarget
	}
	fmt.Printf("%c %10d  %s  %s\n",
		kindChar(e.Kind), e.Size, e.ModTime.Format("2006-01-02 15:04"), name)
}

func kindChar(k podfs.Kind) byte {
	switch k {
	case podfs.KindDir:
		return 'd'
	case podfs.KindSymlink:
		return 'l'
	case podfs.KindFile:
		return '-'
	default:
		return '?'
	}
}

func cmdStat(ctx context.Context, c *podfs.Client, path string) error {
	e, err := c.Stat(ctx, podfs.ParsePath(path))
	if err != nil {
		return err
	}
	fmt.Printf("Path:     %s\n", e.Path)
	fmt.Printf("Kind:     %s\n", e.Kind)
	fmt.Printf("Size:     %d\n", e.Size)
	fmt.Printf("Links:    %d\n", e.NLink)
	fmt.Printf("Modified: %s\n", e.ModTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("Created:  %s\n", e.BirthTime.Format("2006-01-02 15:04:05"))
	if e.Kind == podfs.KindSymlink {
		fmt.Printf("Target:   %s\n", e.LinkTarget)
	}
	return nil
}

func cmdCat(ctx context.Context, c *podfs.Client, path string) error {
	f, err := c.Open(ctx, podfs.ParsePath(path), podfs.ModeRead)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(os.Stdout, f)
	return err
}

func cmdGet(ctx context.Context, c *podfs.Client, remote, local string) error {
	rp := podfs.ParsePath(remote)
	if local == "" {
		local = rp.Name()
	}
	if local == "" {
		return fmt.Errorf("get %s: no local name, pass one explicitly", remote)
	}

	src, err := c.Open(ctx, rp, podfs.ModeRead)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(local)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func cmdPut(ctx context.Context, c *podfs.Client, local, remote string) error {
	if remote == "" {
		remote = "/" + filepath.Base(local)
	}

	src, err := os.Open(local)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := c.Open(ctx, podfs.ParsePath(remote), podfs.ModeWrite)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func cmdDeviceInfo(ctx context.Context, c *podfs.Client) error {
	info, err := c.DeviceInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Model:      %s\n", info.Model)
	fmt.Printf("Capacity:   %d\n", info.TotalBytes)
	fmt.Printf("Free:       %d\n", info.FreeBytes)
	fmt.Printf("Used:       %d\n", info.TotalBytes-info.FreeBytes)
	fmt.Printf("Block size: %d\n", info.BlockSize)
	return nil
}

func cmdHash(ctx context.Context, c *podfs.Client, path string) error {
	sum, err := c.HashFile(ctx, podfs.ParsePath(path))
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s\n", hex.EncodeToString(sum), path)
	return nil
}
