package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/nucleus-os/nucleus/kernel"
	"github.com/nucleus-os/nucleus/proc"
	"github.com/nucleus-os/nucleus/sock"
	"github.com/nucleus-os/nucleus/syscall"
	"github.com/nucleus-os/nucleus/trap"
	"github.com/spf13/cobra"
)

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run the core's end-to-end scenarios against a fresh in-process kernel.",
	Run: func(cmd *cobra.Command, args []string) {
		runSelftest()
	},
}

type scenario struct {
	name string
	run  func() error
}

func sysTrap(num int, a0, a1, a2, a3 int) *trap.Frame_t {
	return &trap.Frame_t{TrapNo: trap.SyscallVector, Eax: num, Ebx: a0, Ecx: a1, Edx: a2, Esi: a3}
}

func trip(k *kernel.Kernel, fr *trap.Frame_t) int {
	k.OnTrap(fr)
	return fr.Eax
}

// runSelftest drives each named scenario against its own
// freshly-built Kernel, the same way kernel_test.go exercises them,
// but as a human-facing report instead of a *testing.T assertion.
func runSelftest() {
	scenarios := []scenario{
		{"fork-exit-wait", scenarioForkExitWait},
		{"round-robin fairness", scenarioRoundRobin},
		{"stream delivery with clamp", scenarioSocketClamp},
		{"signal default-terminate via kill", scenarioSignalKill},
		{"mmap/brk growth", scenarioMmapBrk},
		{"page fault delivers SIGSEGV", scenarioPageFault},
	}

	failed := 0
	for _, sc := range scenarios {
		start := time.Now()
		err := sc.run()
		elapsed := time.Since(start)
		if err != nil {
			failed++
			fmt.Printf("FAIL  %-32s (%s): %v\n", sc.name, elapsed, err)
			continue
		}
		fmt.Printf("ok    %-32s (%s)\n", sc.name, elapsed)
	}

	if failed > 0 {
		fmt.Printf("\n%d/%d scenarios failed\n", failed, len(scenarios))
		os.Exit(1)
	}
	fmt.Printf("\nall %d scenarios passed\n", len(scenarios))
}

func scenarioForkExitWait() error {
	k := kernel.New(64<<20, 4<<20)
	k.Procs.Create(proc.CodeBase, 0)
	k.Sched.Run(nil)

	if got := trip(k, sysTrap(syscall.SysFork, 0, 0, 0, 0)); got != 2 {
		return fmt.Errorf("fork returned %d, expected child pid 2", got)
	}
	k.Sched.Run(nil)
	trip(k, sysTrap(syscall.SysExit, 7, 0, 0, 0))
	if got := trip(k, sysTrap(syscall.SysWait, 0, 0, 0, 0)); got != 2 {
		return fmt.Errorf("wait returned %d, expected reaped child pid 2", got)
	}
	return nil
}

func scenarioRoundRobin() error {
	k := kernel.New(64<<20, 4<<20)
	for i := 0; i < 3; i++ {
		if _, err := k.Procs.Create(proc.CodeBase, 0); err != 0 {
			return fmt.Errorf("create failed: %v", err)
		}
	}
	seen := map[int]int{}
	for i := 0; i < 9; i++ {
		k.Sched.Run(nil)
		seen[int(k.Sched.Current().Pid)]++
	}
	for pid, count := range seen {
		if count != 3 {
			return fmt.Errorf("pid %d scheduled %d times, expected 3 in 9 rotations", pid, count)
		}
	}
	return nil
}

func scenarioSocketClamp() error {
	k := kernel.New(64<<20, 4<<20)
	k.Procs.Create(proc.CodeBase, 0)
	k.Procs.Create(proc.CodeBase, 0)
	k.Sched.Run(nil)

	serverFd := trip(k, sysTrap(syscall.SysSocket, int(sock.Local), int(sock.Stream), 0, 0))
	trip(k, sysTrap(syscall.SysBind, serverFd, 1, 7, 0))
	trip(k, sysTrap(syscall.SysListen, serverFd, 0, 0, 0))

	k.Sched.Run(nil)
	clientFd := trip(k, sysTrap(syscall.SysSocket, int(sock.Local), int(sock.Stream), 0, 0))
	if got := trip(k, sysTrap(syscall.SysConnect, clientFd, 1, 7, 0)); got != 0 {
		return fmt.Errorf("connect failed: %d", got)
	}
	bigBuf := trip(k, sysTrap(syscall.SysMmap, 0, 8192, 0x3, 0))

	k.Sched.Run(nil)
	peerFd := trip(k, sysTrap(syscall.SysAccept, serverFd, 0, 0, 0))
	if peerFd < 0 {
		return fmt.Errorf("accept failed: %d", peerFd)
	}

	k.Sched.Run(nil)
	client := k.Sched.Current()
	big := make([]byte, 5000)
	for i := range big {
		big[i] = byte(i)
	}
	if err := k.CopyOut(client, bigBuf, big); err != 0 {
		return fmt.Errorf("copyOut failed: %v", err)
	}
	if n := trip(k, sysTrap(syscall.SysSend, clientFd, bigBuf, len(big), 0)); n != 4096 {
		return fmt.Errorf("send returned %d, expected clamp to 4096", n)
	}

	k.Sched.Run(nil)
	n := trip(k, sysTrap(syscall.SysRecv, peerFd, proc.DataBase, 8192, 0))
	if n != 4096 {
		return fmt.Errorf("recv returned %d, expected 4096", n)
	}
	return nil
}

func scenarioSignalKill() error {
	k := kernel.New(64<<20, 4<<20)
	target, _ := k.Procs.Create(proc.CodeBase, 0)
	k.Procs.Create(proc.CodeBase, 0)
	k.Sched.Run(nil)
	k.Sched.Run(nil) // the second process is now current and sends the kill

	if got := trip(k, sysTrap(syscall.SysKill, int(target.Pid), 9 /* SIGKILL-equivalent */, 0, 0)); got != 0 {
		return fmt.Errorf("kill failed: %d", got)
	}
	k.Sched.Run(nil) // the target's next scheduler entry delivers the signal
	if p := k.Procs.Find(target.Pid); p == nil || p.State != proc.Zombie {
		return fmt.Errorf("expected killed process to become Zombie by default disposition")
	}
	return nil
}

func scenarioMmapBrk() error {
	k := kernel.New(64<<20, 4<<20)
	k.Procs.Create(proc.CodeBase, 0)
	k.Sched.Run(nil)

	newbrk := trip(k, sysTrap(syscall.SysBrk, proc.HeapBase+0x2000, 0, 0, 0))
	if newbrk != proc.HeapBase+0x2000 {
		return fmt.Errorf("brk returned %#x, expected %#x", newbrk, proc.HeapBase+0x2000)
	}
	addr := trip(k, sysTrap(syscall.SysMmap, 0, 4096, 0x3, 0))
	if addr == 0 {
		return fmt.Errorf("mmap returned 0")
	}
	return nil
}

func scenarioPageFault() error {
	k := kernel.New(64<<20, 4<<20)
	k.Procs.Create(proc.CodeBase, 0)
	k.Sched.Run(nil)
	cur := k.Sched.Current()

	k.OnTrap(&trap.Frame_t{TrapNo: trap.PageFault})
	if cur.State != proc.Zombie {
		return fmt.Errorf("expected default-terminate on unhandled page fault, got state %v", cur.State)
	}
	return nil
}
