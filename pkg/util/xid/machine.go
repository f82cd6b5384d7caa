package xid

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
)

// 测试注入点
var osHostname = os.Hostname

const (
	// EnvMachineID 直接指定机器 ID 的环境变量（0-65535）
	EnvMachineID = "XID_MACHINE_ID"

	// EnvPodName K8s Pod 名称环境变量（通过 Downward API 注入）
	EnvPodName = "POD_NAME"

	// EnvHostname 主机名环境变量
	EnvHostname = "HOSTNAME"
)

// ErrNoMachineID 所有机器 ID 获取策略均失败。
var ErrNoMachineID = errors.New("xid: unable to determine machine id")

// DefaultMachineID 获取机器 ID，优先级：
// XID_MACHINE_ID → POD_NAME 哈希 → HOSTNAME 哈希 → os.Hostname() 哈希。
func DefaultMachineID() (uint16, error) {
	if s := strings.TrimSpace(os.Getenv(EnvMachineID)); s != "" {
		id, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("xid: invalid %s value %q: %w", EnvMachineID, s, err)
		}
		return uint16(id), nil
	}

	for _, env := range []string{EnvPodName, EnvHostname} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return hashMachineID(v), nil
		}
	}

	host, err := osHostname()
	if err != nil || host == "" {
		return 0, errors.Join(ErrNoMachineID, err)
	}
	return hashMachineID(host), nil
}

// hashMachineID 将字符串哈希为 16 位机器 ID。
func hashMachineID(s string) uint16 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s)) // hash.Hash.Write 不返回错误
	v := h.Sum32()
	return uint16(v>>16) ^ uint16(v)
}
