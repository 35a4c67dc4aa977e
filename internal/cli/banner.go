package cli

import (
	"strings"
	"time"

	"rowsync-core/internal/version"
)

const bannerWidth = 60

// BannerInfo 启动横幅信息
type BannerInfo struct {
	NodeID     string
	ConfigFile string
	Transport  string
	Broker     string
	Listen     string
	Topics     []string
	Resync     bool
}

// Banner 打印启动信息
func (o *Output) Banner(info BannerInfo) {
	o.printf("\n  %s %s\n", o.bold.Sprint("rowsync"), o.faint.Sprint(version.GetVersion()))
	o.printf("  %s\n", o.faint.Sprint(strings.Repeat("─", bannerWidth)))

	configFile := info.ConfigFile
	if configFile == "" {
		configFile = "(defaults and environment)"
	}
	topics := "(on demand)"
	if len(info.Topics) > 0 {
		topics = strings.Join(info.Topics, ", ")
	}
	resync := "off"
	if info.Resync {
		resync = "on"
	}

	o.KeyValue("Node ID", info.NodeID)
	o.KeyValue("Config File", configFile)
	o.KeyValue("Start Time", time.Now().Format("2006-01-02 15:04:05"))
	o.KeyValue("Transport", info.Transport)
	if info.Broker != "" {
		o.KeyValue("Broker", info.Broker)
	}
	o.KeyValue("Resync", resync)
	o.KeyValue("Pinned Topics", topics)
	o.KeyValue("API", "http://"+info.Listen)
	o.printf("  %s\n\n", o.faint.Sprint(strings.Repeat("─", bannerWidth)))
}
