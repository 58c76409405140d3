package system

import "os/exec"

// execCommand 用于在测试中替换命令执行
var execCommand = exec.Command
