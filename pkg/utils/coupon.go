package utils

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/speps/go-hashids/v2"
)

// 去掉易混淆字符 (0/O, 1/I)
const couponAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const couponSuffixLen = 6

// CouponCode 生成形如 HOMEZY10-7KQ2ZD 的优惠码：前缀 + 面值 + 随机后缀。
// 不保证全局唯一，调用方需要在存储层做冲突检测。
func CouponCode(prefix, salt string, value int64) (string, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = couponSuffixLen
	hd.Alphabet = couponAlphabet
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return "", err
	}
	suffix, err := h.Encode([]int{rand.IntN(1 << 30)})
	if err != nil {
		return "", err
	}
	if len(suffix) > couponSuffixLen {
		suffix = suffix[:couponSuffixLen]
	}
	return fmt.Sprintf("%s%d-%s", strings.ToUpper(prefix), value, suffix), nil
}
