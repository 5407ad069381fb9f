package cli

import (
	"fmt"
	"sort"

	"github.com/davecgh/go-spew/spew"
	"github.com/nucleus-os/nucleus/kernel"
	"github.com/nucleus-os/nucleus/proc"
	"github.com/spf13/cobra"
)

var pstreeVerbose bool

var pstreeCmd = &cobra.Command{
	Use:   "pstree",
	Short: "Build a fresh kernel, fork a small process tree, and print it.",
	Run: func(cmd *cobra.Command, args []string) {
		runPstree()
	},
}

func init() {
	pstreeCmd.Flags().BoolVarP(&pstreeVerbose, "verbose", "v", false, "dump full PCB state with go-spew")
}

// runPstree demonstrates the process table by creating a small parent/
// child tree and printing it indented by ancestry, the same shape
// arctir-proctor's own `tree` subcommand prints (cmd/cmd.go's treeCmd),
// adapted from "a process and its ancestors" to "a process and its
// descendants": the tree is built by grouping the table snapshot on
// each PCB's Ppid.
func runPstree() {
	k := kernel.New(64<<20, 4<<20)
	root, err := k.Procs.Create(proc.CodeBase, 0)
	if err != 0 {
		fmt.Printf("create failed: %v\n", err)
		return
	}
	k.Sched.Run(nil)
	k.Procs.Fork(root)
	k.Procs.Fork(root)

	procs := k.Procs.Snapshot()
	sort.Slice(procs, func(i, j int) bool { return procs[i].Pid < procs[j].Pid })

	byParent := map[int][]*proc.Pcb_t{}
	for _, p := range procs {
		byParent[int(p.Ppid)] = append(byParent[int(p.Ppid)], p)
	}

	var walk func(pid, depth int)
	walk = func(pid, depth int) {
		for _, p := range byParent[pid] {
			fmt.Printf("%*spid=%d state=%s uid=%d\n", depth*2, "", p.Pid, p.State, p.Uid)
			if pstreeVerbose {
				fmt.Println(spew.Sdump(p.Ctx))
			}
			walk(int(p.Pid), depth+1)
		}
	}
	walk(0, 0)
}
