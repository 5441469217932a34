package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const (
	appName = "nsutils"
	usage   = `nsutils 用于查看与进入 Linux 命名空间
			   lsns 列出主机上全部命名空间，nsenter 进入指定进程的命名空间后执行命令`
)

func main() {
	app := cli.NewApp()
	app.Name = appName
	app.Usage = usage
	app.Flags = globalFlags

	app.Commands = []cli.Command{
		LsnsCommand,
		NsenterCommand,
		ExecCommand,
		LinksCommand,
	}

	// 设置日志输出，标准输出留给列表
	app.Before = func(ctx *cli.Context) error {
		return setupLogging(ctx.GlobalString("log-level"), ctx.GlobalBool("debug"))
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupLogging(level string, debug bool) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "无效的日志级别 %q", level)
	}
	if debug {
		lvl = log.DebugLevel
	}
	log.SetOutput(os.Stderr)
	log.SetLevel(lvl)
	log.SetReportCaller(true) // 启用调用者信息
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			filename := filepath.Base(f.File)
			funcName := filepath.Base(f.Function)
			// 格式化为 [filename:行号:funcName]
			return "", fmt.Sprintf(" [%s:%d:%s]", filename, f.Line, funcName)
		},
		ForceQuote:   true,
		DisableQuote: false,
	})
	return nil
}
