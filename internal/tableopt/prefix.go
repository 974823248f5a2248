package tableopt

// PrefixRange 计算匹配给定前缀的行键半开区间 [lo, hi)。
//
// hi 由前缀最后一个非 0xFF 字节加一得到，其后的字节被丢弃。
// 当前缀整体为 0xFF 序列时不存在有限上界，此时 ok 为 false，
// 调用方应只使用 lo（即 key >= lo）。
//
// 空前缀匹配所有行键，返回 ("", "", false)。
func PrefixRange(prefix string) (lo, hi string, ok bool) {
	if prefix == "" {
		return "", "", false
	}

	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0xFF {
			upper := make([]byte, i+1)
			copy(upper, b[:i+1])
			upper[i]++
			return prefix, string(upper), true
		}
	}
	return prefix, "", false
}
