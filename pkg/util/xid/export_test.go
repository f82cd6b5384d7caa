package xid

// SetHostnameForTest 替换主机名获取函数，返回恢复函数。
func SetHostnameForTest(fn func() (string, error)) func() {
	old := osHostname
	osHostname = fn
	return func() { osHostname = old }
}
