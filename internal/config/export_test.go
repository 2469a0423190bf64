package config

// SetAllocBytes 替换深拷贝分配钩子，返回恢复函数
func SetAllocBytes(fn func(n int) ([]byte, error)) (restore func()) {
	prev := allocBytes
	allocBytes = fn
	return func() { allocBytes = prev }
}
