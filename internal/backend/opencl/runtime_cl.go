//go:build opencl

package opencl

/*
#cgo LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <stdlib.h>
#include <string.h>
#ifdef __APPLE__
#include <OpenCL/cl.h>
#else
#include <CL/cl.h>
#endif

static const char* gr_cl_error_string(cl_int status) {
	switch (status) {
	case CL_SUCCESS: return "CL_SUCCESS";
	case CL_DEVICE_NOT_FOUND: return "CL_DEVICE_NOT_FOUND";
	case CL_DEVICE_NOT_AVAILABLE: return "CL_DEVICE_NOT_AVAILABLE";
	case CL_COMPILER_NOT_AVAILABLE: return "CL_COMPILER_NOT_AVAILABLE";
	case CL_MEM_OBJECT_ALLOCATION_FAILURE: return "CL_MEM_OBJECT_ALLOCATION_FAILURE";
	case CL_OUT_OF_RESOURCES: return "CL_OUT_OF_RESOURCES";
	case CL_OUT_OF_HOST_MEMORY: return "CL_OUT_OF_HOST_MEMORY";
	case CL_BUILD_PROGRAM_FAILURE: return "CL_BUILD_PROGRAM_FAILURE";
	case CL_INVALID_VALUE: return "CL_INVALID_VALUE";
	case CL_INVALID_DEVICE_TYPE: return "CL_INVALID_DEVICE_TYPE";
	case CL_INVALID_PLATFORM: return "CL_INVALID_PLATFORM";
	case CL_INVALID_DEVICE: return "CL_INVALID_DEVICE";
	case CL_INVALID_CONTEXT: return "CL_INVALID_CONTEXT";
	case CL_INVALID_COMMAND_QUEUE: return "CL_INVALID_COMMAND_QUEUE";
	case CL_INVALID_HOST_PTR: return "CL_INVALID_HOST_PTR";
	case CL_INVALID_MEM_OBJECT: return "CL_INVALID_MEM_OBJECT";
	case CL_INVALID_BINARY: return "CL_INVALID_BINARY";
	case CL_INVALID_BUILD_OPTIONS: return "CL_INVALID_BUILD_OPTIONS";
	case CL_INVALID_PROGRAM: return "CL_INVALID_PROGRAM";
	case CL_INVALID_PROGRAM_EXECUTABLE: return "CL_INVALID_PROGRAM_EXECUTABLE";
	case CL_INVALID_KERNEL_NAME: return "CL_INVALID_KERNEL_NAME";
	case CL_INVALID_KERNEL_DEFINITION: return "CL_INVALID_KERNEL_DEFINITION";
	case CL_INVALID_KERNEL: return "CL_INVALID_KERNEL";
	case CL_INVALID_ARG_INDEX: return "CL_INVALID_ARG_INDEX";
	case CL_INVALID_ARG_VALUE: return "CL_INVALID_ARG_VALUE";
	case CL_INVALID_ARG_SIZE: return "CL_INVALID_ARG_SIZE";
	case CL_INVALID_KERNEL_ARGS: return "CL_INVALID_KERNEL_ARGS";
	case CL_INVALID_WORK_DIMENSION: return "CL_INVALID_WORK_DIMENSION";
	case CL_INVALID_WORK_GROUP_SIZE: return "CL_INVALID_WORK_GROUP_SIZE";
	case CL_INVALID_WORK_ITEM_SIZE: return "CL_INVALID_WORK_ITEM_SIZE";
	case CL_INVALID_OPERATION: return "CL_INVALID_OPERATION";
	case CL_INVALID_BUFFER_SIZE: return "CL_INVALID_BUFFER_SIZE";
	case -1001: return "CL_PLATFORM_NOT_FOUND_KHR";
	default: return "CL_UNKNOWN_ERROR";
	}
}

static cl_command_queue gr_create_queue(cl_context ctx, cl_device_id device, cl_int *status) {
	return clCreateCommandQueue(ctx, device, 0, status);
}

static cl_program gr_create_program(cl_context ctx, const char *src, cl_int *status) {
	size_t len = strlen(src);
	return clCreateProgramWithSource(ctx, 1, &src, &len, status);
}

static cl_int gr_build_program(cl_program prog, cl_device_id device) {
	return clBuildProgram(prog, 1, &device, NULL, NULL, NULL);
}

static cl_int gr_set_arg_mem(cl_kernel k, cl_uint index, cl_mem m) {
	return clSetKernelArg(k, index, sizeof(cl_mem), &m);
}

static cl_int gr_set_arg_local(cl_kernel k, cl_uint index, size_t size) {
	return clSetKernelArg(k, index, size, NULL);
}

static cl_int gr_set_arg_int(cl_kernel k, cl_uint index, cl_int v) {
	return clSetKernelArg(k, index, sizeof(cl_int), &v);
}

static cl_int gr_enqueue_1d(cl_command_queue q, cl_kernel k, size_t global, size_t local) {
	return clEnqueueNDRangeKernel(q, k, 1, NULL, &global, &local, 0, NULL, NULL);
}
*/
import "C"

import (
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/gpureduce/internal/compute"
)

// StatusError is a failed OpenCL call.
type StatusError struct {
	Call   string
	Status int
	Name   string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("opencl: %s: %s (%d)", e.Call, e.Name, e.Status)
}

// Unwrap maps the status to the matching compute sentinel, if any.
func (e *StatusError) Unwrap() error {
	switch C.cl_int(e.Status) {
	case C.CL_DEVICE_NOT_FOUND:
		return compute.ErrNoDevices
	case -1001: // CL_PLATFORM_NOT_FOUND_KHR
		return compute.ErrNoPlatforms
	case C.CL_MEM_OBJECT_ALLOCATION_FAILURE, C.CL_OUT_OF_RESOURCES, C.CL_OUT_OF_HOST_MEMORY:
		return compute.ErrOutOfResources
	case C.CL_INVALID_BUFFER_SIZE:
		return compute.ErrInvalidBufferSize
	case C.CL_BUILD_PROGRAM_FAILURE:
		return compute.ErrBuildFailed
	case C.CL_INVALID_KERNEL_NAME:
		return compute.ErrKernelNotFound
	case C.CL_INVALID_WORK_GROUP_SIZE, C.CL_INVALID_WORK_ITEM_SIZE:
		return compute.ErrInvalidWorkGroupSize
	case C.CL_INVALID_ARG_INDEX:
		return compute.ErrArgIndex
	case C.CL_INVALID_ARG_VALUE, C.CL_INVALID_ARG_SIZE:
		return compute.ErrArgKind
	case C.CL_INVALID_KERNEL_ARGS:
		return compute.ErrArgUnset
	}
	return nil
}

func statusError(call string, status C.cl_int) error {
	return &StatusError{Call: call, Status: int(status), Name: C.GoString(C.gr_cl_error_string(status))}
}

type runtime struct {
	once    sync.Once
	records []platformRecord
	err     error
}

// load enumerates platforms once. The set of OpenCL platforms does not
// change during the life of a process.
func (rt *runtime) load() ([]platformRecord, error) {
	rt.once.Do(func() {
		rt.records, rt.err = enumeratePlatformRecords()
	})
	return rt.records, rt.err
}

func (rt *runtime) available() bool {
	records, err := rt.load()
	if err != nil {
		klog.V(1).Infof("opencl: unavailable: %v", err)
		return false
	}
	for _, r := range records {
		if len(r.devices) > 0 {
			return true
		}
	}
	return false
}

func (rt *runtime) platforms() ([]compute.Platform, error) {
	records, err := rt.load()
	if err != nil {
		return nil, err
	}
	out := make([]compute.Platform, len(records))
	for i := range records {
		out[i] = &records[i]
	}
	return out, nil
}

type platformRecord struct {
	id      C.cl_platform_id
	info    compute.PlatformInfo
	devices []*deviceRecord
}

func (p *platformRecord) Info() compute.PlatformInfo { return p.info }

func (p *platformRecord) Devices(kind compute.DeviceType) ([]compute.Device, error) {
	var out []compute.Device
	for _, d := range p.devices {
		if d.info.Type.Matches(kind) {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, errors.Wrapf(compute.ErrNoDevices, "opencl: %s has no device of type %s", p.info.Name, kind)
	}
	return out, nil
}

type deviceRecord struct {
	id   C.cl_device_id
	info compute.DeviceInfo
}

func (d *deviceRecord) Info() compute.DeviceInfo { return d.info }

func (d *deviceRecord) NewContext() (compute.Context, error) {
	var status C.cl_int
	ctx := C.clCreateContext(nil, 1, &d.id, nil, nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateContext", status)
	}
	klog.V(2).Infof("opencl: context on %s", d.info.Name)
	return &context{id: ctx, device: d}, nil
}

func enumeratePlatformRecords() ([]platformRecord, error) {
	var count C.cl_uint
	status := C.clGetPlatformIDs(0, nil, &count)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(count)", status)
	}
	if count == 0 {
		return nil, nil
	}

	ids := make([]C.cl_platform_id, int(count))
	if status = C.clGetPlatformIDs(count, &ids[0], nil); status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(list)", status)
	}

	records := make([]platformRecord, 0, len(ids))
	for _, pid := range ids {
		rec := platformRecord{id: pid}
		var err error
		if rec.info.Name, err = platformString(pid, C.CL_PLATFORM_NAME); err != nil {
			return nil, err
		}
		if rec.info.Vendor, err = platformString(pid, C.CL_PLATFORM_VENDOR); err != nil {
			return nil, err
		}
		if rec.info.Version, err = platformString(pid, C.CL_PLATFORM_VERSION); err != nil {
			return nil, err
		}
		devices, err := enumerateDevices(pid)
		if err != nil && !errors.Is(err, compute.ErrNoDevices) {
			return nil, err
		}
		rec.devices = devices
		records = append(records, rec)
	}
	return records, nil
}

func enumerateDevices(platform C.cl_platform_id) ([]*deviceRecord, error) {
	var count C.cl_uint
	status := C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_ALL, 0, nil, &count)
	if status == C.CL_DEVICE_NOT_FOUND || (status == C.CL_SUCCESS && count == 0) {
		return nil, compute.ErrNoDevices
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(count)", status)
	}

	ids := make([]C.cl_device_id, int(count))
	if status = C.clGetDeviceIDs(platform, C.CL_DEVICE_TYPE_ALL, count, &ids[0], nil); status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(list)", status)
	}

	devices := make([]*deviceRecord, 0, len(ids))
	for _, id := range ids {
		info, err := deviceInfo(id)
		if err != nil {
			return nil, err
		}
		devices = append(devices, &deviceRecord{id: id, info: info})
	}
	return devices, nil
}

func deviceInfo(id C.cl_device_id) (compute.DeviceInfo, error) {
	var (
		info compute.DeviceInfo
		err  error
	)
	if info.Name, err = deviceString(id, C.CL_DEVICE_NAME); err != nil {
		return info, err
	}
	if info.Vendor, err = deviceString(id, C.CL_DEVICE_VENDOR); err != nil {
		return info, err
	}
	if info.Version, err = deviceString(id, C.CL_DEVICE_VERSION); err != nil {
		return info, err
	}
	extensions, err := deviceString(id, C.CL_DEVICE_EXTENSIONS)
	if err != nil {
		return info, err
	}
	info.Features = strings.Fields(extensions)

	var (
		rawType      C.cl_device_type
		computeUnits C.cl_uint
		maxGroup     C.size_t
		localMem     C.cl_ulong
		maxAlloc     C.cl_ulong
	)
	queries := []struct {
		name  string
		param C.cl_device_info
		size  uintptr
		ptr   unsafe.Pointer
	}{
		{"type", C.CL_DEVICE_TYPE, unsafe.Sizeof(rawType), unsafe.Pointer(&rawType)},
		{"max compute units", C.CL_DEVICE_MAX_COMPUTE_UNITS, unsafe.Sizeof(computeUnits), unsafe.Pointer(&computeUnits)},
		{"max work group size", C.CL_DEVICE_MAX_WORK_GROUP_SIZE, unsafe.Sizeof(maxGroup), unsafe.Pointer(&maxGroup)},
		{"local mem size", C.CL_DEVICE_LOCAL_MEM_SIZE, unsafe.Sizeof(localMem), unsafe.Pointer(&localMem)},
		{"max mem alloc size", C.CL_DEVICE_MAX_MEM_ALLOC_SIZE, unsafe.Sizeof(maxAlloc), unsafe.Pointer(&maxAlloc)},
	}
	for _, q := range queries {
		if status := C.clGetDeviceInfo(id, q.param, C.size_t(q.size), q.ptr, nil); status != C.CL_SUCCESS {
			return info, statusError("clGetDeviceInfo("+q.name+")", status)
		}
	}

	info.Type = mapDeviceType(rawType)
	info.MaxComputeUnits = uint32(computeUnits)
	info.MaxWorkGroupSize = int(maxGroup)
	info.LocalMemSize = int(localMem)
	info.MaxAllocSize = int(min(maxAlloc, C.cl_ulong(1<<62)))
	return info, nil
}

func platformString(id C.cl_platform_id, param C.cl_platform_info) (string, error) {
	var size C.size_t
	if status := C.clGetPlatformInfo(id, param, 0, nil, &size); status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}
	buf := make([]byte, int(size))
	if status := C.clGetPlatformInfo(id, param, size, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(value)", status)
	}
	return trimNull(buf), nil
}

func deviceString(id C.cl_device_id, param C.cl_device_info) (string, error) {
	var size C.size_t
	if status := C.clGetDeviceInfo(id, param, 0, nil, &size); status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}
	buf := make([]byte, int(size))
	if status := C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(value)", status)
	}
	return trimNull(buf), nil
}

func trimNull(buf []byte) string {
	return strings.TrimRight(string(buf), "\x00")
}

func mapDeviceType(dt C.cl_device_type) compute.DeviceType {
	var out compute.DeviceType
	if dt&C.CL_DEVICE_TYPE_CPU != 0 {
		out |= compute.DeviceTypeCPU
	}
	if dt&C.CL_DEVICE_TYPE_GPU != 0 {
		out |= compute.DeviceTypeGPU
	}
	if dt&C.CL_DEVICE_TYPE_ACCELERATOR != 0 {
		out |= compute.DeviceTypeAccelerator
	}
	return out
}

// handle tracks the released state shared by every OpenCL object wrapper.
type handle struct {
	mu       sync.Mutex
	released bool
}

func (h *handle) check(what string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return errors.Wrap(compute.ErrReleased, "opencl: "+what)
	}
	return nil
}

// release marks the handle released and runs fn once.
func (h *handle) release(what string, fn func() C.cl_int, call string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return errors.Wrap(compute.ErrReleased, "opencl: "+what)
	}
	h.released = true
	if status := fn(); status != C.CL_SUCCESS {
		return statusError(call, status)
	}
	return nil
}

type context struct {
	handle
	id     C.cl_context
	device *deviceRecord
}

func (c *context) NewQueue() (compute.Queue, error) {
	if err := c.check("context"); err != nil {
		return nil, err
	}
	var status C.cl_int
	q := C.gr_create_queue(c.id, c.device.id, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateCommandQueue", status)
	}
	return &queue{id: q}, nil
}

func (c *context) BuildProgram(source string) (compute.Program, error) {
	if err := c.check("context"); err != nil {
		return nil, err
	}
	src := C.CString(source)
	defer C.free(unsafe.Pointer(src))

	var status C.cl_int
	prog := C.gr_create_program(c.id, src, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateProgramWithSource", status)
	}
	if status = C.gr_build_program(prog, c.device.id); status != C.CL_SUCCESS {
		log := buildLog(prog, c.device.id)
		C.clReleaseProgram(prog)
		return nil, &compute.BuildError{Driver: Name, Log: log, Err: statusError("clBuildProgram", status)}
	}
	return &program{id: prog}, nil
}

// buildLog returns the compiler output for device, or a note when it cannot
// be retrieved.
func buildLog(prog C.cl_program, device C.cl_device_id) string {
	var size C.size_t
	status := C.clGetProgramBuildInfo(prog, device, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size)
	if status != C.CL_SUCCESS || size == 0 {
		return fmt.Sprintf("(build log unavailable: %v)", statusError("clGetProgramBuildInfo", status))
	}
	buf := make([]byte, int(size))
	status = C.clGetProgramBuildInfo(prog, device, C.CL_PROGRAM_BUILD_LOG, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return fmt.Sprintf("(build log unavailable: %v)", statusError("clGetProgramBuildInfo", status))
	}
	return strings.TrimSpace(trimNull(buf))
}

func (c *context) NewBuffer(flags compute.MemFlags, size int, host []byte) (compute.Mem, error) {
	if err := c.check("context"); err != nil {
		return nil, err
	}
	if size <= 0 || (host != nil && len(host) != size) {
		return nil, errors.Wrapf(compute.ErrInvalidBufferSize, "opencl: buffer of %d bytes (%d host bytes)", size, len(host))
	}
	if limit := c.device.info.MaxAllocSize; limit > 0 && size > limit {
		return nil, errors.Wrapf(compute.ErrOutOfResources, "opencl: buffer of %d bytes exceeds max allocation of %d", size, limit)
	}

	var clFlags C.cl_mem_flags
	switch flags {
	case compute.MemReadOnly:
		clFlags = C.CL_MEM_READ_ONLY
	case compute.MemWriteOnly:
		clFlags = C.CL_MEM_WRITE_ONLY
	default:
		clFlags = C.CL_MEM_READ_WRITE
	}
	var ptr unsafe.Pointer
	if host != nil {
		clFlags |= C.CL_MEM_COPY_HOST_PTR
		ptr = unsafe.Pointer(&host[0])
	}

	var status C.cl_int
	m := C.clCreateBuffer(c.id, clFlags, C.size_t(size), ptr, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateBuffer", status)
	}
	return &mem{id: m, flags: flags, size: size}, nil
}

func (c *context) Release() error {
	return c.release("context", func() C.cl_int { return C.clReleaseContext(c.id) }, "clReleaseContext")
}

type queue struct {
	handle
	id C.cl_command_queue
}

func (q *queue) EnqueueNDRange(k compute.Kernel, global, local int) error {
	if err := q.check("queue"); err != nil {
		return err
	}
	ck, ok := k.(*kernel)
	if !ok {
		return errors.Wrapf(compute.ErrForeignHandle, "opencl: %T", k)
	}
	if err := ck.check("kernel " + ck.name); err != nil {
		return err
	}
	if local <= 0 || global <= 0 || global%local != 0 {
		return errors.Wrapf(compute.ErrInvalidWorkGroupSize, "opencl: global %d, local %d", global, local)
	}
	if status := C.gr_enqueue_1d(q.id, ck.id, C.size_t(global), C.size_t(local)); status != C.CL_SUCCESS {
		return statusError("clEnqueueNDRangeKernel", status)
	}
	return nil
}

func (q *queue) EnqueueRead(m compute.Mem, dst []byte) error {
	if err := q.check("queue"); err != nil {
		return err
	}
	cm, ok := m.(*mem)
	if !ok {
		return errors.Wrapf(compute.ErrForeignHandle, "opencl: %T", m)
	}
	if err := cm.check("buffer"); err != nil {
		return err
	}
	if len(dst) == 0 {
		return q.Finish()
	}
	if len(dst) > cm.size {
		return errors.Wrapf(compute.ErrInvalidBufferSize, "opencl: read of %d bytes from a %d byte buffer", len(dst), cm.size)
	}
	status := C.clEnqueueReadBuffer(q.id, cm.id, C.CL_TRUE, 0, C.size_t(len(dst)), unsafe.Pointer(&dst[0]), 0, nil, nil)
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueReadBuffer", status)
	}
	return nil
}

func (q *queue) Finish() error {
	if err := q.check("queue"); err != nil {
		return err
	}
	if status := C.clFinish(q.id); status != C.CL_SUCCESS {
		return statusError("clFinish", status)
	}
	return nil
}

func (q *queue) Release() error {
	return q.release("queue", func() C.cl_int {
		C.clFinish(q.id)
		return C.clReleaseCommandQueue(q.id)
	}, "clReleaseCommandQueue")
}

type program struct {
	handle
	id C.cl_program
}

func (p *program) Kernel(name string) (compute.Kernel, error) {
	if err := p.check("program"); err != nil {
		return nil, err
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var status C.cl_int
	k := C.clCreateKernel(p.id, cname, &status)
	if status != C.CL_SUCCESS {
		return nil, errors.Wrapf(statusError("clCreateKernel", status), "kernel %q", name)
	}
	return &kernel{id: k, name: name}, nil
}

func (p *program) Release() error {
	return p.release("program", func() C.cl_int { return C.clReleaseProgram(p.id) }, "clReleaseProgram")
}

type kernel struct {
	handle
	id   C.cl_kernel
	name string
}

func (k *kernel) Name() string { return k.name }

func (k *kernel) SetArgMem(index int, m compute.Mem) error {
	if err := k.check("kernel " + k.name); err != nil {
		return err
	}
	cm, ok := m.(*mem)
	if !ok {
		return errors.Wrapf(compute.ErrForeignHandle, "opencl: %T", m)
	}
	if err := cm.check("buffer"); err != nil {
		return err
	}
	if status := C.gr_set_arg_mem(k.id, C.cl_uint(index), cm.id); status != C.CL_SUCCESS {
		return statusError(fmt.Sprintf("clSetKernelArg(%d, buffer)", index), status)
	}
	return nil
}

func (k *kernel) SetArgLocal(index int, size int) error {
	if err := k.check("kernel " + k.name); err != nil {
		return err
	}
	if size <= 0 {
		return errors.Wrapf(compute.ErrInvalidBufferSize, "opencl: local argument of %d bytes", size)
	}
	if status := C.gr_set_arg_local(k.id, C.cl_uint(index), C.size_t(size)); status != C.CL_SUCCESS {
		return statusError(fmt.Sprintf("clSetKernelArg(%d, local)", index), status)
	}
	return nil
}

func (k *kernel) SetArgInt32(index int, v int32) error {
	if err := k.check("kernel " + k.name); err != nil {
		return err
	}
	if status := C.gr_set_arg_int(k.id, C.cl_uint(index), C.cl_int(v)); status != C.CL_SUCCESS {
		return statusError(fmt.Sprintf("clSetKernelArg(%d, int)", index), status)
	}
	return nil
}

func (k *kernel) Release() error {
	return k.release("kernel "+k.name, func() C.cl_int { return C.clReleaseKernel(k.id) }, "clReleaseKernel")
}

type mem struct {
	handle
	id    C.cl_mem
	flags compute.MemFlags
	size  int
}

func (m *mem) Size() int              { return m.size }
func (m *mem) Flags() compute.MemFlags { return m.flags }

func (m *mem) Release() error {
	return m.release("buffer", func() C.cl_int { return C.clReleaseMemObject(m.id) }, "clReleaseMemObject")
}
