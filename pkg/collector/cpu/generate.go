//go:build linux
// +build linux

package cpu

//go:generate clang -O2 -g -target bpf -D__TARGET_ARCH_x86 -c ../../../bpf/switch_count.c -o ../../../bpf/switch_count.o
