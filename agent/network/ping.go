package network

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-ping/ping"
	rmm "github.com/vpscope/vpsagent/shared"
)

func DoPing(host string) (rmm.PingResult, error) {
	var ret rmm.PingResult
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return ret, err
	}

	var buf bytes.Buffer
	pinger.OnRecv = func(pkt *ping.Packet) {
		fmt.Fprintf(&buf, "%d bytes from %s: icmp_seq=%d time=%v\n",
			pkt.Nbytes, pkt.IPAddr, pkt.Seq, pkt.Rtt)
	}

	pinger.OnFinish = func(stats *ping.Statistics) {
		writeStats(&buf, stats)
	}

	pinger.Count = 3
	pinger.Size = 548
	pinger.Interval = time.Second
	pinger.Timeout = 5 * time.Second
	pinger.SetPrivileged(true)

	if err := pinger.Run(); err != nil {
		return ret, err
	}

	ret.Output = buf.String()
	ret.Status = statusFor(pinger.Statistics())
	return ret, nil
}

func writeStats(buf *bytes.Buffer, stats *ping.Statistics) {
	fmt.Fprintf(buf, "\n--- %s ping statistics ---\n", stats.Addr)
	fmt.Fprintf(buf, "%d packets transmitted, %d packets received, %v%% packet loss\n",
		stats.PacketsSent, stats.PacketsRecv, stats.PacketLoss)
	fmt.Fprintf(buf, "round-trip min/avg/max/stddev = %v/%v/%v/%v\n",
		stats.MinRtt, stats.AvgRtt, stats.MaxRtt, stats.StdDevRtt)
}

func statusFor(stats *ping.Statistics) string {
	if stats.PacketsRecv == stats.PacketsSent || stats.PacketLoss == 0 {
		return "passing"
	}
	return "failing"
}
