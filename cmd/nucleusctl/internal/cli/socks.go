package cli

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/nucleus-os/nucleus/fd"
	"github.com/nucleus-os/nucleus/kernel"
	"github.com/nucleus-os/nucleus/proc"
	"github.com/nucleus-os/nucleus/sock"
	"github.com/nucleus-os/nucleus/syscall"
	"github.com/spf13/cobra"
)

var socksVerbose bool

var socksCmd = &cobra.Command{
	Use:   "socks",
	Short: "Build a fresh kernel, connect a client/server socket pair, and dump live sockets.",
	Run: func(cmd *cobra.Command, args []string) {
		runSocks()
	},
}

func init() {
	socksCmd.Flags().BoolVarP(&socksVerbose, "verbose", "v", false, "dump full socket state with go-spew")
}

// runSocks walks every process's descriptor table looking for socket
// descriptors and prints their live state, using fd.Table_t.Each (the
// every-descriptor counterpart of the fd.Table_t.Get lookup that
// sysSend/sysRecv use for a single descriptor).
func runSocks() {
	k := kernel.New(64<<20, 4<<20)
	k.Procs.Create(proc.CodeBase, 0)
	k.Procs.Create(proc.CodeBase, 0)
	k.Sched.Run(nil)

	serverFd := trip(k, sysTrap(syscall.SysSocket, int(sock.Local), int(sock.Stream), 0, 0))
	trip(k, sysTrap(syscall.SysBind, serverFd, 1, 9, 0))
	trip(k, sysTrap(syscall.SysListen, serverFd, 0, 0, 0))

	k.Sched.Run(nil)
	clientFd := trip(k, sysTrap(syscall.SysSocket, int(sock.Local), int(sock.Stream), 0, 0))
	trip(k, sysTrap(syscall.SysConnect, clientFd, 1, 9, 0))

	k.Sched.Run(nil)
	trip(k, sysTrap(syscall.SysAccept, serverFd, 0, 0, 0))

	for _, p := range k.Procs.Snapshot() {
		p.Fds.Each(func(num int, f *fd.Fd_t) {
			sfd, ok := f.Fops.(*sock.SockFd_t)
			if !ok {
				return
			}
			fmt.Printf("pid=%d fd=%d state=%d addr=%+v peer=%v\n",
				p.Pid, num, sfd.Sk.State, sfd.Sk.Addr, sfd.Sk.Peer != nil)
			if socksVerbose {
				fmt.Println(spew.Sdump(sfd.Sk))
			}
		})
	}
}
