package service

import (
	"strings"
	"unicode/utf8"

	"coinmarket/internal/model"
)

const maxAddressLength = 512

// resolveAddress 未填写地址时，纯数字商品使用占位地址，含实体商品则拒绝
func resolveAddress(address string, kinds []string) (string, error) {
	address = strings.TrimSpace(address)
	if utf8.RuneCountInString(address) > maxAddressLength {
		return "", ErrAddressTooLong
	}
	if address != "" {
		return address, nil
	}
	for _, kind := range kinds {
		if model.RequiresShipping(kind) {
			return "", ErrAddressRequired
		}
	}
	return model.DigitalDeliveryAddress, nil
}
